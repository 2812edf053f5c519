package db

import (
	"fmt"
	"strings"

	"github.com/valyala/fastjson"
)

type IdentitySerializer interface {
	SerializeIdentity(identity *Identity) ([]byte, error)
	DeserializeIdentity(value []byte) (*Identity, error)
}

type JoinSessionSerializer interface {
	SerializeSession(session *JoinSession) ([]byte, error)
	DeserializeSession(value []byte) (*JoinSession, error)
}

func NewJsonSerializer() *JsonSerializer {
	return &JsonSerializer{
		parserPool: &fastjson.ParserPool{},
	}
}

type JsonSerializer struct {
	parserPool *fastjson.ParserPool
}

// Reasons for manual JSON serialization:
// 1. The models must be pure and must not contain tags.
// 2. Without tags it's impossible to apply omitempty during serialization.
// 3. Without omitempty empty optional fields inflate the storage size.
// The structures are flat, so writing the serialization by hand is trivial.
func (s *JsonSerializer) SerializeIdentity(identity *Identity) ([]byte, error) {
	var builder strings.Builder
	builder.Grow(512)
	builder.WriteString(`{"uuid":`)
	writeJsonString(&builder, identity.Uuid)
	builder.WriteString(`,"username":`)
	writeJsonString(&builder, identity.Username)
	builder.WriteString(`,"passwordHash":`)
	writeJsonString(&builder, identity.PasswordHash)
	if identity.Skin != "" {
		builder.WriteString(`,"skin":`)
		writeJsonString(&builder, identity.Skin)
		if identity.SkinModel != "" {
			builder.WriteString(`,"skinModel":`)
			writeJsonString(&builder, identity.SkinModel)
		}
	}

	if identity.Cape != "" {
		builder.WriteString(`,"cape":`)
		writeJsonString(&builder, identity.Cape)
	}

	builder.WriteString("}")

	return []byte(builder.String()), nil
}

func (s *JsonSerializer) DeserializeIdentity(value []byte) (*Identity, error) {
	parser := s.parserPool.Get()
	defer s.parserPool.Put(parser)
	v, err := parser.ParseBytes(value)
	if err != nil {
		return nil, err
	}

	return &Identity{
		Uuid:         string(v.GetStringBytes("uuid")),
		Username:     string(v.GetStringBytes("username")),
		PasswordHash: string(v.GetStringBytes("passwordHash")),
		Skin:         string(v.GetStringBytes("skin")),
		SkinModel:    string(v.GetStringBytes("skinModel")),
		Cape:         string(v.GetStringBytes("cape")),
	}, nil
}

func (s *JsonSerializer) SerializeSession(session *JoinSession) ([]byte, error) {
	var builder strings.Builder
	builder.Grow(512)
	builder.WriteString(`{"accessToken":`)
	writeJsonString(&builder, session.AccessToken)
	builder.WriteString(`,"uuid":`)
	writeJsonString(&builder, session.Uuid)
	builder.WriteString(`,"username":`)
	writeJsonString(&builder, session.Username)
	builder.WriteString(`,"serverId":`)
	writeJsonString(&builder, session.ServerId)
	builder.WriteString("}")

	return []byte(builder.String()), nil
}

// writeJsonString writes value as a quoted JSON string. The session's
// serverId comes straight from the client, so quotes, backslashes and
// control characters must survive a round trip through the storage.
func writeJsonString(builder *strings.Builder, value string) {
	builder.WriteByte('"')
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case c == '"' || c == '\\':
			builder.WriteByte('\\')
			builder.WriteByte(c)
		case c < 0x20:
			fmt.Fprintf(builder, `\u%04x`, c)
		default:
			builder.WriteByte(c)
		}
	}

	builder.WriteByte('"')
}

func (s *JsonSerializer) DeserializeSession(value []byte) (*JoinSession, error) {
	parser := s.parserPool.Get()
	defer s.parserPool.Put(parser)
	v, err := parser.ParseBytes(value)
	if err != nil {
		return nil, err
	}

	return &JoinSession{
		AccessToken: string(v.GetStringBytes("accessToken")),
		Uuid:        string(v.GetStringBytes("uuid")),
		Username:    string(v.GetStringBytes("username")),
		ServerId:    string(v.GetStringBytes("serverId")),
	}, nil
}
