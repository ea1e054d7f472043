// Package cdn implements C6: publishing the three named artifacts a
// successful publish produces (schema, metadata, supergraph) to an
// S3-compatible object store.
package cdn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Resource is one of the three artifact kinds the registry publishes per
// target, per spec §4.6/§6.
type Resource string

const (
	ResourceSchema     Resource = "schema"
	ResourceMetadata   Resource = "metadata"
	ResourceSupergraph Resource = "supergraph"
)

type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Bucket          string
	Endpoint        string
	PublicURL       string
	ForcePathStyle  bool
}

// Publisher pushes artifacts to S3-compatible storage and returns their
// public URLs.
type Publisher struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

func NewPublisher(cfg Config) (*Publisher, error) {
	var awsCfg aws.Config
	var err error

	if cfg.Endpoint != "" {
		customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{URL: cfg.Endpoint, SigningRegion: cfg.Region}, nil
		})
		awsCfg, err = config.LoadDefaultConfig(context.TODO(),
			config.WithRegion(cfg.Region),
			config.WithEndpointResolverWithOptions(customResolver),
			config.WithCredentialsProvider(aws.NewCredentialsCache(aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
				return aws.Credentials{AccessKeyID: cfg.AccessKeyID, SecretAccessKey: cfg.SecretAccessKey}, nil
			}))),
		)
	} else {
		awsCfg, err = config.LoadDefaultConfig(context.TODO(), config.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	publicURL := cfg.PublicURL
	if publicURL == "" {
		if cfg.Endpoint != "" {
			publicURL = fmt.Sprintf("%s/%s", cfg.Endpoint, cfg.Bucket)
		} else {
			publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}

	return &Publisher{client: client, bucket: cfg.Bucket, publicURL: publicURL}, nil
}

// SchemaEntry is one named service's SDL, the unit the schema artifact is
// built from for composite project types; Name is empty for SINGLE
// projects, which publish exactly one entry as a bare object rather than
// an array.
type SchemaEntry struct {
	Name        string    `json:"name,omitempty"`
	SDL         string    `json:"sdl"`
	PublishedAt time.Time `json:"date"`
}

// PublishSchema uploads the schema artifact: a single {sdl, date} object
// for a SINGLE project's one entry, or a JSON array of per-service entries
// for composite project types, per spec §4.6.
func (p *Publisher) PublishSchema(ctx context.Context, targetID string, entries []SchemaEntry, composite bool) (string, error) {
	body, err := buildSchemaBody(entries, composite)
	if err != nil {
		return "", fmt.Errorf("failed to build schema artifact for target %s: %w", targetID, err)
	}
	return p.upload(ctx, targetID, ResourceSchema, body, "application/json")
}

func buildSchemaBody(entries []SchemaEntry, composite bool) ([]byte, error) {
	if composite {
		return json.Marshal(entries)
	}
	if len(entries) == 0 {
		return json.Marshal(SchemaEntry{})
	}
	return json.Marshal(entries[0])
}

// PublishMetadata uploads the metadata artifact: a JSON array merging every
// non-empty metadata document recorded for the target's live services, or
// JSON null when none carry metadata, per spec §4.6.
func (p *Publisher) PublishMetadata(ctx context.Context, targetID string, metadataJSON []string) (string, error) {
	body, err := buildMetadataBody(metadataJSON)
	if err != nil {
		return "", fmt.Errorf("failed to build metadata artifact for target %s: %w", targetID, err)
	}
	return p.upload(ctx, targetID, ResourceMetadata, body, "application/json")
}

func buildMetadataBody(metadataJSON []string) ([]byte, error) {
	var entries []json.RawMessage
	for _, m := range metadataJSON {
		if m == "" {
			continue
		}
		entries = append(entries, json.RawMessage(m))
	}
	if len(entries) == 0 {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(entries); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// PublishSupergraph uploads the federation supergraph SDL verbatim, the
// only artifact published as plain text rather than JSON.
func (p *Publisher) PublishSupergraph(ctx context.Context, targetID string, sdl string) (string, error) {
	return p.upload(ctx, targetID, ResourceSupergraph, []byte(sdl), "application/graphql")
}

func (p *Publisher) upload(ctx context.Context, targetID string, resource Resource, body []byte, contentType string) (string, error) {
	key := p.key(targetID, resource)

	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &p.bucket,
		Key:         &key,
		Body:        strings.NewReader(string(body)),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to publish %s for target %s: %w", resource, targetID, err)
	}

	return fmt.Sprintf("%s/%s", p.publicURL, key), nil
}

// Delete removes a previously published artifact. Deleting a service from
// a composite project does not call it; the coordinator re-publishes the
// schema artifact without that service instead.
func (p *Publisher) Delete(ctx context.Context, targetID string, resource Resource) error {
	key := p.key(targetID, resource)
	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &p.bucket, Key: &key})
	if err != nil {
		return fmt.Errorf("failed to delete %s for target %s: %w", resource, targetID, err)
	}
	return nil
}

func (p *Publisher) URL(targetID string, resource Resource) string {
	return fmt.Sprintf("%s/%s", p.publicURL, p.key(targetID, resource))
}

func (p *Publisher) key(targetID string, resource Resource) string {
	return fmt.Sprintf("%s/%s", targetID, resource)
}
