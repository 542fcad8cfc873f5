package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"fund-directory/config"
	"fund-directory/internal/model"
	"fund-directory/internal/util"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	log "github.com/sirupsen/logrus"
)

const archiveTimeout = 10 * time.Second

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// IncidentArchive : складывает события повторного использования токенов в S3.
// Запись идёт в фоне и не задерживает ответ клиенту.
type IncidentArchive struct {
	client objectPutter
	bucket string
	prefix string
	wg     sync.WaitGroup
	log    *log.Entry
}

func NewIncidentArchive(ctx context.Context, cfg *config.S3Config) (*IncidentArchive, error) {
	var client *s3.Client

	if cfg.Local {
		client = s3.New(s3.Options{
			Region: cfg.Region,
			Credentials: credentials.NewStaticCredentialsProvider(
				"minioadmin",
				"minioadmin",
				"",
			),
			BaseEndpoint: aws.String(cfg.Endpoint),
			UsePathStyle: true,
		})

		if err := createBucketIfNotExists(ctx, client, cfg.Bucket); err != nil {
			return nil, util.LogError("[IncidentArchive] ошибка создания бакета", err)
		}
	} else {
		awsCfg, err := awsConfig.LoadDefaultConfig(ctx, awsConfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, util.LogError("[IncidentArchive] ошибка загрузки AWS config", err)
		}
		client = s3.NewFromConfig(awsCfg)
	}

	return newIncidentArchive(client, cfg.Bucket, cfg.Prefix), nil
}

func newIncidentArchive(client objectPutter, bucket, prefix string) *IncidentArchive {
	return &IncidentArchive{
		client: client,
		bucket: bucket,
		prefix: prefix,
		log:    util.Component("incident-archive"),
	}
}

// createBucketIfNotExists создает бакет если он не существует
func createBucketIfNotExists(ctx context.Context, client *s3.Client, bucket string) error {
	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err == nil {
		return nil
	}

	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return util.LogError("[IncidentArchive] ошибка создания бакета", err)
	}

	log.Infof("[IncidentArchive] бакет %s успешно создан", bucket)
	return nil
}

// Publish : остальные типы событий игнорируются
func (a *IncidentArchive) Publish(ctx context.Context, event model.SessionEvent) error {
	if event.Type != model.EventReuseDetected {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("ошибка сериализации инцидента: %w", err)
	}
	key := a.key(event)

	// запрос уже может быть завершён, а запись в архив должна дойти
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer cancel()

		_, err := a.client.PutObject(writeCtx, &s3.PutObjectInput{
			Bucket:      aws.String(a.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			a.log.WithField("key", key).Errorf("не удалось сохранить инцидент: %v", err)
			return
		}
		a.log.WithField("key", key).Info("инцидент сохранён")
	}()

	return nil
}

// Wait : дожидается фоновых записей, вызывается при остановке
func (a *IncidentArchive) Wait() {
	a.wg.Wait()
}

func (a *IncidentArchive) key(event model.SessionEvent) string {
	at := event.OccurredAt.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s-%s.json",
		a.prefix, at.Year(), int(at.Month()), at.Day(), event.TokenFamily, event.ID)
}
