package auth

import (
	"bytes"
	"context"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pkcs1PEM(t *testing.T) []byte {
	t.Helper()
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(testKey())})
}

func pkcs8PEM(t *testing.T) []byte {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(testKey())
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "key.pem")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoadPrivateKey_File(t *testing.T) {
	for name, data := range map[string][]byte{"pkcs1": pkcs1PEM(t), "pkcs8": pkcs8PEM(t)} {
		t.Run(name, func(t *testing.T) {
			key, err := LoadPrivateKey(context.Background(), writeFile(t, data), S3Settings{})
			require.NoError(t, err)
			assert.True(t, key.Equal(testKey()))
		})
	}
}

func TestLoadPrivateKey_Missing(t *testing.T) {
	_, err := LoadPrivateKey(context.Background(), filepath.Join(t.TempDir(), "nope.pem"), S3Settings{})
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadPrivateKey_Garbage(t *testing.T) {
	_, err := LoadPrivateKey(context.Background(), writeFile(t, []byte("not a key")), S3Settings{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error parsing private key")
}

func stubS3(t *testing.T, fn func(in *s3.GetObjectInput) (*s3.GetObjectOutput, error)) {
	t.Helper()
	origLoad, origGet := loadDefaultAWSConfig, getObject
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{Region: "us-east-1"}, nil
	}
	getObject = func(_ *s3.Client, _ context.Context, in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
		return fn(in)
	}
	t.Cleanup(func() {
		loadDefaultAWSConfig, getObject = origLoad, origGet
	})
}

func TestLoadPrivateKey_S3(t *testing.T) {
	data := pkcs8PEM(t)
	stubS3(t, func(in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
		assert.Equal(t, "keys", aws.ToString(in.Bucket))
		assert.Equal(t, "signing/dev.pem", aws.ToString(in.Key))
		return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
	})

	key, err := LoadPrivateKey(context.Background(), "s3://keys/signing/dev.pem", S3Settings{
		User: "admin", Password: "secret", Region: "us-east-1", BaseEndpoint: "http://127.0.0.1:9000/",
	})
	require.NoError(t, err)
	assert.True(t, key.Equal(testKey()))
}

func TestLoadPrivateKey_S3Error(t *testing.T) {
	stubS3(t, func(in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
		return nil, errors.New("no such key")
	})

	_, err := LoadPrivateKey(context.Background(), "s3://keys/dev.pem", S3Settings{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such key")
}

func TestLoadPrivateKey_S3ConfigError(t *testing.T) {
	orig := loadDefaultAWSConfig
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("bad config")
	}
	defer func() { loadDefaultAWSConfig = orig }()

	_, err := LoadPrivateKey(context.Background(), "s3://keys/dev.pem", S3Settings{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad config")
}

func TestParseS3Location(t *testing.T) {
	tests := []struct {
		in          string
		bucket, key string
		wantErr     bool
	}{
		{"s3://b/k.pem", "b", "k.pem", false},
		{"s3://b/dir/k.pem", "b", "dir/k.pem", false},
		{"s3://b", "", "", true},
		{"s3:///k.pem", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			bucket, key, err := parseS3Location(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestGenerateDevKey(t *testing.T) {
	key, err := GenerateDevKey()
	require.NoError(t, err)
	assert.Equal(t, DevKeyBits, key.N.BitLen())
}
