package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/golang-jwt/jwt/v5"
)

const s3Scheme = "s3://"

// DevKeyBits is the size of keys made by GenerateDevKey.
const DevKeyBits = 2048

// S3Settings addresses the S3-compatible storage that may hold the key.
type S3Settings struct {
	User         string
	Password     string
	Region       string
	BaseEndpoint string
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	getObject = func(c *s3.Client, ctx context.Context, in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
		return c.GetObject(ctx, in)
	}
)

// LoadPrivateKey reads a PEM encoded RSA key (PKCS#1 or PKCS#8) from a file
// path or from an s3://bucket/key location.
func LoadPrivateKey(ctx context.Context, location string, s3cfg S3Settings) (*rsa.PrivateKey, error) {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(location, s3Scheme) {
		data, err = readS3Object(ctx, location, s3cfg)
	} else {
		data, err = os.ReadFile(location)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading private key: %w", err)
	}
	return ParsePrivateKey(data)
}

func ParsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("error parsing private key: %w", err)
	}
	return key, nil
}

// GenerateDevKey makes an ephemeral signing key. Tokens signed with it do not
// survive a restart.
func GenerateDevKey() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, DevKeyBits)
}

func parseS3Location(location string) (bucket, key string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", err
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", errors.New("s3 location must look like s3://bucket/key")
	}
	return bucket, key, nil
}

func readS3Object(ctx context.Context, location string, s3cfg S3Settings) ([]byte, error) {
	bucket, key, err := parseS3Location(location)
	if err != nil {
		return nil, err
	}

	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s3cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s3cfg.User,
			s3cfg.Password,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s3cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s3cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	out, err := getObject(client, ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}
