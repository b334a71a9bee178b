package xmongo

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/connstring"

	"github.com/omeyang/xdbtune/pkg/context/xenv"
)

func TestBuildURI_Exact(t *testing.T) {
	uri, err := BuildURI(
		HostInfo{Hosts: []string{"db1:27017", "db2:27017"}, Database: "app"},
		Credentials{},
		ResolvePoolConfig(xenv.TierTest, 4),
	)
	require.NoError(t, err)

	want := "mongodb://db1:27017,db2:27017/app?" +
		"connectTimeoutMS=5000&maxIdleTimeMS=10000&maxPoolSize=5&minPoolSize=1" +
		"&retryReads=false&retryWrites=false&serverSelectionTimeoutMS=5000" +
		"&socketTimeoutMS=10000&waitQueueTimeoutMS=5000"
	assert.Equal(t, want, uri.Raw())
	// 没有密码时脱敏形式与原文一致
	assert.Equal(t, want, uri.String())
}

func TestBuildURI_OptionalParams(t *testing.T) {
	uri, err := BuildURI(
		HostInfo{
			Hosts:      []string{"db1:27017"},
			Database:   "app",
			AuthSource: "admin",
			ReplicaSet: "rs0",
			AppName:    "billing api",
		},
		Credentials{},
		ResolvePoolConfig(xenv.TierProduction, 2),
	)
	require.NoError(t, err)

	raw := uri.Raw()
	query := raw[strings.Index(raw, "?")+1:]
	keys := make([]string, 0)
	for _, pair := range strings.Split(query, "&") {
		keys = append(keys, strings.SplitN(pair, "=", 2)[0])
	}
	assert.Equal(t, []string{
		"appName", "authSource", "compressors", "connectTimeoutMS",
		"maxIdleTimeMS", "maxPoolSize", "minPoolSize", "replicaSet",
		"retryReads", "retryWrites", "serverSelectionTimeoutMS",
		"socketTimeoutMS", "waitQueueTimeoutMS",
	}, keys)
	assert.Contains(t, raw, "appName=billing%20api")
	assert.Contains(t, raw, "compressors=zstd%2Czlib%2Csnappy")
}

func TestBuildURI_OmitsEmptyOptional(t *testing.T) {
	uri, err := BuildURI(
		HostInfo{Hosts: []string{"localhost:27017"}},
		Credentials{},
		ResolvePoolConfig(xenv.TierTest, 1),
	)
	require.NoError(t, err)

	for _, key := range []string{"compressors=", "authSource=", "replicaSet=", "appName="} {
		assert.NotContains(t, uri.Raw(), key)
	}
	assert.True(t, strings.HasPrefix(uri.Raw(), "mongodb://localhost:27017/?"))
}

func TestBuildURI_CredentialsRoundTrip(t *testing.T) {
	cred := Credentials{Username: "us er", Password: "p@ss:word/+%"}
	uri, err := BuildURI(
		HostInfo{Hosts: []string{"db1:27017"}, Database: "app"},
		cred,
		ResolvePoolConfig(xenv.TierDevelopment, 4),
	)
	require.NoError(t, err)

	parsed, err := url.Parse(uri.Raw())
	require.NoError(t, err)
	assert.Equal(t, cred.Username, parsed.User.Username())
	password, ok := parsed.User.Password()
	require.True(t, ok)
	assert.Equal(t, cred.Password, password)

	// 驱动的连接串解析结果与配置一致
	cs, err := connstring.ParseAndValidate(uri.Raw())
	require.NoError(t, err)
	assert.Equal(t, cred.Username, cs.Username)
	assert.Equal(t, cred.Password, cs.Password)
	assert.Equal(t, "app", cs.Database)
	assert.Equal(t, uint64(10), cs.MaxPoolSize)
	assert.Equal(t, uint64(2), cs.MinPoolSize)
	assert.Equal(t, []string{"zstd", "zlib", "snappy"}, cs.Compressors)
	assert.True(t, cs.RetryWrites)
}

func TestBuildURI_Redaction(t *testing.T) {
	const secret = "s3cr3t-pa55"
	uri, err := BuildURI(
		HostInfo{Hosts: []string{"db1:27017"}, Database: "app"},
		Credentials{Username: "svc", Password: secret},
		ResolvePoolConfig(xenv.TierTest, 1),
	)
	require.NoError(t, err)

	assert.Contains(t, uri.Raw(), "svc:"+secret+"@")
	assert.Contains(t, uri.String(), "svc:***@")

	var buf bytes.Buffer
	slog.New(slog.NewTextHandler(&buf, nil)).Info("connect", slog.Any("uri", uri))

	for name, rendered := range map[string]string{
		"String": uri.String(),
		"%v":     fmt.Sprintf("%v", uri),
		"%+v":    fmt.Sprintf("%+v", uri),
		"%#v":    fmt.Sprintf("%#v", uri),
		"%s":     fmt.Sprintf("%s", uri),
		"slog":   buf.String(),
	} {
		assert.NotContains(t, rendered, secret, name)
		assert.Contains(t, rendered, "***", name)
	}
}

func TestBuildURI_UsernameOnly(t *testing.T) {
	uri, err := BuildURI(
		HostInfo{Hosts: []string{"db1:27017"}},
		Credentials{Username: "svc"},
		ResolvePoolConfig(xenv.TierTest, 1),
	)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri.Raw(), "mongodb://svc@db1:27017/"))
	assert.Equal(t, uri.Raw(), uri.String())
}

func TestBuildURI_SRV(t *testing.T) {
	uri, err := BuildURI(
		HostInfo{Hosts: []string{"cluster0.example.net"}, Database: "app", SRV: true},
		Credentials{Username: "svc", Password: "pw"},
		ResolvePoolConfig(xenv.TierProduction, 2),
	)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri.Raw(), "mongodb+srv://svc:pw@cluster0.example.net/app?"))
}

func TestBuildURI_Invalid(t *testing.T) {
	valid := ResolvePoolConfig(xenv.TierTest, 1)

	tests := []struct {
		name    string
		host    HostInfo
		cred    Credentials
		cfg     PoolConfig
		wantMsg string
	}{
		{"no hosts", HostInfo{}, Credentials{}, valid, "no hosts"},
		{"blank host", HostInfo{Hosts: []string{"db1:27017", " "}}, Credentials{}, valid, "empty host at index 1"},
		{"srv multi host", HostInfo{Hosts: []string{"a.example.net", "b.example.net"}, SRV: true}, Credentials{}, valid, "srv requires exactly one host"},
		{"srv with port", HostInfo{Hosts: []string{"a.example.net:27017"}, SRV: true}, Credentials{}, valid, "must not carry a port"},
		{"password without username", HostInfo{Hosts: []string{"db1:27017"}}, Credentials{Password: "pw"}, valid, "password without username"},
		{"invalid pool", HostInfo{Hosts: []string{"db1:27017"}}, Credentials{}, PoolConfig{MaxPoolSize: 1, MinPoolSize: 2}, "exceeds maxPoolSize"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uri, err := BuildURI(tt.host, tt.cred, tt.cfg)
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.True(t, uri.IsZero())
		})
	}
}

func TestCredentials_LogValue(t *testing.T) {
	var buf bytes.Buffer
	slog.New(slog.NewJSONHandler(&buf, nil)).Info("cred",
		slog.Any("cred", Credentials{Username: "svc", Password: "hunter2"}))

	assert.NotContains(t, buf.String(), "hunter2")
	assert.Contains(t, buf.String(), `"username":"svc"`)
	assert.Contains(t, buf.String(), `"password":"***"`)
}
