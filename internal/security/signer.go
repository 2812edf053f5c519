package security

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
)

var randomReader = rand.Reader

func NewSigner(key *rsa.PrivateKey) *Signer {
	return &Signer{Key: key}
}

type Signer struct {
	Key *rsa.PrivateKey
}

// SignTextures signs the base64-encoded textures payload as a plain string.
// The verifying side checks the signature over the exact same text,
// so the payload must never be re-serialized after signing
func (s *Signer) SignTextures(ctx context.Context, textures string) (string, error) {
	message := []byte(textures)
	messageHash := sha1.New()
	_, err := messageHash.Write(message)
	if err != nil {
		return "", err
	}

	messageHashSum := messageHash.Sum(nil)
	signature, err := rsa.SignPKCS1v15(randomReader, s.Key, crypto.SHA1, messageHashSum)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(signature), nil
}

func (s *Signer) GetPublicKey(ctx context.Context, format string) (string, error) {
	asn1Bytes, err := x509.MarshalPKIXPublicKey(&s.Key.PublicKey)
	if err != nil {
		return "", err
	}

	switch format {
	case "der":
		return string(asn1Bytes), nil
	case "pem":
		return string(pem.EncodeToMemory(&pem.Block{
			Type:  "PUBLIC KEY",
			Bytes: asn1Bytes,
		})), nil
	default:
		return "", fmt.Errorf("unsupported public key format %s", format)
	}
}
