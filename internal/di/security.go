package di

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"strings"

	"github.com/defval/di"
	"github.com/spf13/viper"

	"candy.skin/yggdrasil/internal/http"
	"candy.skin/yggdrasil/internal/security"
	"candy.skin/yggdrasil/internal/session"
)

var securityDiOptions = di.Options(
	di.Provide(newJwt,
		di.As(new(http.Authenticator)),
		di.As(new(http.TokensService)),
		di.As(new(session.TokensVerifier)),
	),
	di.Provide(newSigner, di.As(new(http.SignerService))),
)

func newJwt(config *viper.Viper) (*security.Jwt, error) {
	key := config.GetString("candyskin.secret")
	if key == "" {
		return nil, errors.New("candyskin.secret must be set in order to issue tokens")
	}

	return security.NewJwt([]byte(key)), nil
}

func newSigner(config *viper.Viper) (*security.Signer, error) {
	keyStr := config.GetString("candyskin.signing.key")
	if keyStr == "" {
		// TODO: log a message about the generated signing key and the way to specify it permanently
		privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, err
		}

		return security.NewSigner(privateKey), nil
	}

	var keyBytes []byte
	if strings.HasPrefix(keyStr, "base64:") {
		base64Value := keyStr[7:]
		decodedKey, err := base64.URLEncoding.DecodeString(base64Value)
		if err != nil {
			return nil, err
		}

		keyBytes = decodedKey
	} else {
		keyBytes = []byte(keyStr)
	}

	rawPem, _ := pem.Decode(keyBytes)
	if rawPem == nil {
		return nil, errors.New("candyskin.signing.key contains no PEM data")
	}

	privateKey, err := x509.ParsePKCS1PrivateKey(rawPem.Bytes)
	if err != nil {
		return nil, err
	}

	return security.NewSigner(privateKey), nil
}
