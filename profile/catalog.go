package profile

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
)

var (
	sentimentModels   = []string{"bert-base", "roberta-large", "distilbert"}
	transformSources  = []string{"postgres", "mysql", "mongodb", "s3", "redis"}
	transformTargets  = []string{"warehouse", "lake", "api", "cache"}
	webhookEventTypes = []string{"user.created", "order.completed", "payment.received", "item.shipped"}
	imageExtensions   = []string{"jpg", "png", "webp"}
	imageSizes        = []int{128, 256, 512, 1024, 2048}
)

// Default returns the built-in catalog: four generated profiles followed by
// four periodic maintenance profiles.
func Default() *Registry {
	r, err := NewRegistry(
		Profile{
			Name:     "sentiment-analysis",
			Class:    "SentimentAnalyzer",
			Queue:    "inference",
			MinSleep: DefaultMinSleep,
			MaxSleep: DefaultMaxSleep,
			Generate: SentimentPayload,
		},
		Profile{
			Name:        "data-transform",
			Class:       "DataTransformer",
			Queue:       "etl",
			MaxAttempts: 3,
			MinSleep:    DefaultMinSleep,
			MaxSleep:    DefaultMaxSleep,
			Generate:    TransformPayload,
		},
		Profile{
			Name:        "webhook-delivery",
			Class:       "WebhookDelivery",
			Queue:       "webhooks",
			MaxAttempts: 10,
			MinSleep:    100 * time.Millisecond,
			MaxSleep:    5 * time.Second,
			Generate:    WebhookPayload,
		},
		Profile{
			Name:        "image-resize",
			Class:       "ImageResizer",
			Queue:       "transcoding",
			MaxAttempts: 3,
			MinSleep:    500 * time.Millisecond,
			MaxSleep:    15 * time.Second,
			Generate:    ResizePayload,
		},
		Profile{
			Name:     "health-ping",
			Class:    "HealthPing",
			Queue:    "maintenance",
			Cron:     "* * * * *",
			MinSleep: 10 * time.Millisecond,
			MaxSleep: 100 * time.Millisecond,
		},
		Profile{
			Name:     "model-warmup",
			Class:    "ModelWarmup",
			Queue:    "inference",
			Cron:     "*/5 * * * *",
			MinSleep: 100 * time.Millisecond,
			MaxSleep: 500 * time.Millisecond,
		},
		Profile{
			Name:     "cache-cleanup",
			Class:    "CacheCleanup",
			Queue:    "maintenance",
			Cron:     "*/15 * * * *",
			MinSleep: 200 * time.Millisecond,
			MaxSleep: time.Second,
		},
		Profile{
			Name:     "hourly-aggregation",
			Class:    "HourlyAggregator",
			Queue:    "etl",
			Cron:     "0 * * * *",
			MinSleep: 500 * time.Millisecond,
			MaxSleep: 2 * time.Second,
		},
	)
	if err != nil {
		panic(fmt.Sprintf("profile: invalid default catalog: %v", err))
	}
	return r
}

// SentimentPayload generates an inference request
func SentimentPayload() map[string]interface{} {
	return map[string]interface{}{
		"text":     gofakeit.Paragraph(1, 4, 12, " "),
		"model":    gofakeit.RandomString(sentimentModels),
		"language": gofakeit.LanguageAbbreviation(),
	}
}

// TransformPayload generates an ETL batch description
func TransformPayload() map[string]interface{} {
	return map[string]interface{}{
		"source":       gofakeit.RandomString(transformSources),
		"destination":  gofakeit.RandomString(transformTargets),
		"batch_id":     uuid.NewString(),
		"record_count": gofakeit.Number(100, 10000),
	}
}

// WebhookPayload generates a webhook delivery
func WebhookPayload() map[string]interface{} {
	return map[string]interface{}{
		"endpoint":   gofakeit.URL(),
		"event_type": gofakeit.RandomString(webhookEventTypes),
		"payload_id": uuid.NewString(),
	}
}

// ResizePayload generates an image transcode request with 2-4 distinct target sizes
func ResizePayload() map[string]interface{} {
	sizes := make([]int, len(imageSizes))
	copy(sizes, imageSizes)
	gofakeit.ShuffleInts(sizes)

	return map[string]interface{}{
		"source_key": fmt.Sprintf("uploads/%s.%s", uuid.NewString(), gofakeit.RandomString(imageExtensions)),
		"sizes":      sizes[:gofakeit.Number(2, 4)],
		"quality":    gofakeit.Number(70, 95),
	}
}
