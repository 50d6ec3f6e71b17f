package tracker

import (
	"database/sql"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	cadencetest "github.com/teranos/cadence/internal/testing"
	"github.com/teranos/cadence/internal/util"
)

func TestNewUsageTracker(t *testing.T) {
	db := cadencetest.CreateTestDB(t)

	tracker := NewUsageTracker(db, nil)
	if tracker == nil {
		t.Fatal("NewUsageTracker returned nil")
	}
	if tracker.db != db {
		t.Error("tracker does not hold the provided database")
	}
}

func TestTrackUsage(t *testing.T) {
	db := cadencetest.CreateTestDB(t)
	tracker := NewUsageTracker(db, nil)

	requestTime := time.Now().UTC()
	responseTime := requestTime.Add(1200 * time.Millisecond)

	usage := &ModelUsage{
		OperationType:     "qualification",
		EntityType:        "lead",
		EntityID:          "lead-123",
		ModelName:         "meta-llama/Llama-3.1-8B-Instruct",
		ModelProvider:     "huggingface",
		ModelConfig:       NewModelConfig(util.Ptr(0.3), util.Ptr(300)),
		RequestTimestamp:  requestTime,
		ResponseTimestamp: &responseTime,
		TokensUsed:        util.Ptr(450),
		Cost:              util.Ptr(0.0000248),
		Success:           true,
		Metadata:          NewUsageMetadata(UsageMetadata{Variant: "A"}),
	}

	if err := tracker.TrackUsage(usage); err != nil {
		t.Fatalf("TrackUsage failed: %v", err)
	}

	var (
		operationType string
		modelName     string
		modelConfig   sql.NullString
		tokensUsed    int
		cost          float64
		success       bool
		metadata      sql.NullString
	)
	err := db.QueryRow(`
		SELECT operation_type, model_name, model_config, tokens_used, cost, success, metadata
		FROM llm_usage WHERE entity_id = ?`, "lead-123").Scan(
		&operationType, &modelName, &modelConfig, &tokensUsed, &cost, &success, &metadata)
	if err != nil {
		t.Fatalf("Failed to read back usage record: %v", err)
	}

	if operationType != "qualification" {
		t.Errorf("operation_type = %q, want %q", operationType, "qualification")
	}
	if modelName != "meta-llama/Llama-3.1-8B-Instruct" {
		t.Errorf("model_name = %q, want %q", modelName, "meta-llama/Llama-3.1-8B-Instruct")
	}
	if !modelConfig.Valid || !strings.Contains(modelConfig.String, `"max_tokens":300`) {
		t.Errorf("model_config = %v, want JSON containing max_tokens", modelConfig)
	}
	if tokensUsed != 450 {
		t.Errorf("tokens_used = %d, want 450", tokensUsed)
	}
	if math.Abs(cost-0.0000248) > 1e-9 {
		t.Errorf("cost = %v, want 0.0000248", cost)
	}
	if !success {
		t.Error("success = false, want true")
	}
	if !metadata.Valid || !strings.Contains(metadata.String, `"variant":"A"`) {
		t.Errorf("metadata = %v, want JSON containing variant", metadata)
	}
}

func TestTrackUsageWithError(t *testing.T) {
	db := cadencetest.CreateTestDB(t)
	tracker := NewUsageTracker(db, nil)

	usage := &ModelUsage{
		OperationType:    "email_generation",
		EntityType:       "lead",
		EntityID:         "lead-456",
		ModelName:        "meta-llama/Llama-3.1-8B-Instruct",
		ModelProvider:    "huggingface",
		RequestTimestamp: time.Now().UTC(),
		Success:          false,
		ErrorMessage:     util.Ptr("API error 503"),
	}

	if err := tracker.TrackUsage(usage); err != nil {
		t.Fatalf("TrackUsage failed: %v", err)
	}

	var (
		success      bool
		errorMessage sql.NullString
		tokensUsed   sql.NullInt64
	)
	err := db.QueryRow(`
		SELECT success, error_message, tokens_used
		FROM llm_usage WHERE entity_id = ?`, "lead-456").Scan(&success, &errorMessage, &tokensUsed)
	if err != nil {
		t.Fatalf("Failed to read back usage record: %v", err)
	}

	if success {
		t.Error("success = true, want false")
	}
	if !errorMessage.Valid || errorMessage.String != "API error 503" {
		t.Errorf("error_message = %v, want %q", errorMessage, "API error 503")
	}
	if tokensUsed.Valid {
		t.Errorf("tokens_used = %v, want NULL", tokensUsed)
	}
}

func trackTestRecord(t *testing.T, tracker *UsageTracker, model string, requestedAt time.Time, tokens int, cost float64, success bool) {
	t.Helper()

	responseTime := requestedAt.Add(1500 * time.Millisecond)
	usage := &ModelUsage{
		OperationType:     "qualification",
		EntityType:        "lead",
		EntityID:          "lead-stats",
		ModelName:         model,
		ModelProvider:     "huggingface",
		RequestTimestamp:  requestedAt,
		ResponseTimestamp: &responseTime,
		TokensUsed:        util.Ptr(tokens),
		Cost:              util.Ptr(cost),
		Success:           success,
	}
	if !success {
		usage.ResponseTimestamp = nil
		usage.TokensUsed = nil
		usage.Cost = nil
		usage.ErrorMessage = util.Ptr("request failed")
	}

	if err := tracker.TrackUsage(usage); err != nil {
		t.Fatalf("TrackUsage failed: %v", err)
	}
}

func TestGetUsageStats(t *testing.T) {
	db := cadencetest.CreateTestDB(t)
	tracker := NewUsageTracker(db, nil)

	now := time.Now().UTC()
	trackTestRecord(t, tracker, "meta-llama/Llama-3.1-8B-Instruct", now.Add(-10*time.Minute), 400, 0.02, true)
	trackTestRecord(t, tracker, "meta-llama/Llama-3.1-8B-Instruct", now.Add(-5*time.Minute), 600, 0.03, true)
	trackTestRecord(t, tracker, "mistralai/Mistral-7B-Instruct-v0.3", now.Add(-2*time.Minute), 0, 0, false)

	// Outside the window, must not be counted
	trackTestRecord(t, tracker, "meta-llama/Llama-3.1-8B-Instruct", now.Add(-2*time.Hour), 9999, 9.99, true)

	stats, err := tracker.GetUsageStats(now.Add(-1 * time.Hour))
	if err != nil {
		t.Fatalf("GetUsageStats failed: %v", err)
	}

	if stats.TotalRequests != 3 {
		t.Errorf("TotalRequests = %d, want 3", stats.TotalRequests)
	}
	if stats.SuccessfulRequests != 2 {
		t.Errorf("SuccessfulRequests = %d, want 2", stats.SuccessfulRequests)
	}
	if math.Abs(stats.SuccessRate-2.0/3.0) > 1e-9 {
		t.Errorf("SuccessRate = %v, want %v", stats.SuccessRate, 2.0/3.0)
	}
	if stats.TotalTokens != 1000 {
		t.Errorf("TotalTokens = %d, want 1000", stats.TotalTokens)
	}
	if math.Abs(stats.TotalCost-0.05) > 1e-9 {
		t.Errorf("TotalCost = %v, want 0.05", stats.TotalCost)
	}
	if stats.UniqueModels != 2 {
		t.Errorf("UniqueModels = %d, want 2", stats.UniqueModels)
	}
}

func TestGetUsageStats_Empty(t *testing.T) {
	db := cadencetest.CreateTestDB(t)
	tracker := NewUsageTracker(db, nil)

	stats, err := tracker.GetUsageStats(time.Now().UTC().Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("GetUsageStats failed: %v", err)
	}

	if stats.TotalRequests != 0 {
		t.Errorf("TotalRequests = %d, want 0", stats.TotalRequests)
	}
	if stats.SuccessRate != 0 {
		t.Errorf("SuccessRate = %v, want 0", stats.SuccessRate)
	}
	if stats.TotalCost != 0 {
		t.Errorf("TotalCost = %v, want 0", stats.TotalCost)
	}
}

func TestGetModelBreakdown(t *testing.T) {
	db := cadencetest.CreateTestDB(t)
	tracker := NewUsageTracker(db, nil)

	now := time.Now().UTC()
	trackTestRecord(t, tracker, "meta-llama/Llama-3.1-8B-Instruct", now.Add(-30*time.Minute), 500, 0.05, true)
	trackTestRecord(t, tracker, "meta-llama/Llama-3.1-8B-Instruct", now.Add(-20*time.Minute), 300, 0.03, true)
	trackTestRecord(t, tracker, "mistralai/Mistral-7B-Instruct-v0.3", now.Add(-10*time.Minute), 200, 0.01, true)

	// Failed requests are excluded from the breakdown
	trackTestRecord(t, tracker, "mistralai/Mistral-7B-Instruct-v0.3", now.Add(-5*time.Minute), 0, 0, false)

	breakdown, err := tracker.GetModelBreakdown(now.Add(-1 * time.Hour))
	if err != nil {
		t.Fatalf("GetModelBreakdown failed: %v", err)
	}

	if len(breakdown) != 2 {
		t.Fatalf("breakdown has %d models, want 2", len(breakdown))
	}

	// Ordered by total cost, most expensive first
	llama := breakdown[0]
	if llama.ModelName != "meta-llama/Llama-3.1-8B-Instruct" {
		t.Errorf("breakdown[0].ModelName = %q, want llama model first", llama.ModelName)
	}
	if llama.RequestCount != 2 {
		t.Errorf("llama RequestCount = %d, want 2", llama.RequestCount)
	}
	if llama.TotalTokens != 800 {
		t.Errorf("llama TotalTokens = %d, want 800", llama.TotalTokens)
	}
	if math.Abs(llama.TotalCost-0.08) > 1e-9 {
		t.Errorf("llama TotalCost = %v, want 0.08", llama.TotalCost)
	}
	if llama.AvgResponseTimeMs == nil {
		t.Fatal("llama AvgResponseTimeMs is nil, want ~1500ms")
	}
	if math.Abs(*llama.AvgResponseTimeMs-1500) > 5 {
		t.Errorf("llama AvgResponseTimeMs = %v, want ~1500", *llama.AvgResponseTimeMs)
	}

	mistral := breakdown[1]
	if mistral.ModelName != "mistralai/Mistral-7B-Instruct-v0.3" {
		t.Errorf("breakdown[1].ModelName = %q, want mistral model second", mistral.ModelName)
	}
	if mistral.RequestCount != 1 {
		t.Errorf("mistral RequestCount = %d, want 1", mistral.RequestCount)
	}
}

func TestGetTimeSeriesData(t *testing.T) {
	db := cadencetest.CreateTestDB(t)
	tracker := NewUsageTracker(db, nil)

	// Pin records to midday so date bucketing cannot straddle midnight
	midday := time.Now().UTC().Truncate(24 * time.Hour).Add(12 * time.Hour)
	dayOne := midday.AddDate(0, 0, -3)
	dayTwo := midday.AddDate(0, 0, -1)

	trackTestRecord(t, tracker, "meta-llama/Llama-3.1-8B-Instruct", dayOne, 400, 0.02, true)
	trackTestRecord(t, tracker, "meta-llama/Llama-3.1-8B-Instruct", dayOne.Add(1*time.Hour), 600, 0.03, true)
	trackTestRecord(t, tracker, "meta-llama/Llama-3.1-8B-Instruct", dayTwo, 200, 0.01, true)

	// Outside the default 30-day window
	trackTestRecord(t, tracker, "meta-llama/Llama-3.1-8B-Instruct", midday.AddDate(0, 0, -40), 100, 0.5, true)

	points, err := tracker.GetTimeSeriesData(0)
	if err != nil {
		t.Fatalf("GetTimeSeriesData failed: %v", err)
	}

	if len(points) != 2 {
		t.Fatalf("got %d points, want 2", len(points))
	}
	if points[0].Date != dayOne.Format("2006-01-02") {
		t.Errorf("points[0].Date = %q, want %q", points[0].Date, dayOne.Format("2006-01-02"))
	}
	if points[0].Requests != 2 {
		t.Errorf("points[0].Requests = %d, want 2", points[0].Requests)
	}
	if math.Abs(points[0].Cost-0.05) > 1e-9 {
		t.Errorf("points[0].Cost = %v, want 0.05", points[0].Cost)
	}
	if points[1].Date != dayTwo.Format("2006-01-02") {
		t.Errorf("points[1].Date = %q, want %q", points[1].Date, dayTwo.Format("2006-01-02"))
	}
	if points[1].Requests != 1 {
		t.Errorf("points[1].Requests = %d, want 1", points[1].Requests)
	}
}

func TestNewModelConfig(t *testing.T) {
	if config := NewModelConfig(nil, nil); config != nil {
		t.Errorf("NewModelConfig(nil, nil) = %v, want nil", *config)
	}

	config := NewModelConfig(util.Ptr(0.7), nil)
	if config == nil {
		t.Fatal("NewModelConfig with temperature returned nil")
	}
	var parsed ModelConfig
	if err := json.Unmarshal([]byte(*config), &parsed); err != nil {
		t.Fatalf("Failed to parse model config JSON: %v", err)
	}
	if parsed.Temperature == nil || *parsed.Temperature != 0.7 {
		t.Errorf("parsed Temperature = %v, want 0.7", parsed.Temperature)
	}
	if parsed.MaxTokens != nil {
		t.Errorf("parsed MaxTokens = %v, want nil", parsed.MaxTokens)
	}

	config = NewModelConfig(util.Ptr(0.3), util.Ptr(300))
	if err := json.Unmarshal([]byte(*config), &parsed); err != nil {
		t.Fatalf("Failed to parse model config JSON: %v", err)
	}
	if parsed.MaxTokens == nil || *parsed.MaxTokens != 300 {
		t.Errorf("parsed MaxTokens = %v, want 300", parsed.MaxTokens)
	}
}

func TestNewUsageMetadata(t *testing.T) {
	metadata := NewUsageMetadata(UsageMetadata{
		Variant:      "B",
		CampaignID:   "campaign-1",
		InputLength:  util.Ptr(820),
		OutputLength: util.Ptr(240),
	})
	if metadata == nil {
		t.Fatal("NewUsageMetadata returned nil")
	}

	var parsed UsageMetadata
	if err := json.Unmarshal([]byte(*metadata), &parsed); err != nil {
		t.Fatalf("Failed to parse metadata JSON: %v", err)
	}
	if parsed.Variant != "B" {
		t.Errorf("parsed Variant = %q, want %q", parsed.Variant, "B")
	}
	if parsed.CampaignID != "campaign-1" {
		t.Errorf("parsed CampaignID = %q, want %q", parsed.CampaignID, "campaign-1")
	}
	if parsed.InputLength == nil || *parsed.InputLength != 820 {
		t.Errorf("parsed InputLength = %v, want 820", parsed.InputLength)
	}

	empty := NewUsageMetadata(UsageMetadata{})
	if empty == nil || *empty != "{}" {
		t.Errorf("NewUsageMetadata(empty) = %v, want {}", empty)
	}
}

func TestTrackUsage_Sqlmock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	tracker := NewUsageTracker(db, nil)

	mock.ExpectExec(`INSERT INTO llm_usage`).
		WithArgs("qualification", "lead", "lead-789", "meta-llama/Llama-3.1-8B-Instruct", "huggingface",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), 450, 0.025, true, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	responseTime := time.Now().UTC()
	usage := &ModelUsage{
		OperationType:     "qualification",
		EntityType:        "lead",
		EntityID:          "lead-789",
		ModelName:         "meta-llama/Llama-3.1-8B-Instruct",
		ModelProvider:     "huggingface",
		ModelConfig:       NewModelConfig(util.Ptr(0.3), util.Ptr(300)),
		RequestTimestamp:  responseTime.Add(-1 * time.Second),
		ResponseTimestamp: &responseTime,
		TokensUsed:        util.Ptr(450),
		Cost:              util.Ptr(0.025),
		Success:           true,
		Metadata:          NewUsageMetadata(UsageMetadata{Variant: "A"}),
	}

	if err := tracker.TrackUsage(usage); err != nil {
		t.Fatalf("TrackUsage failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet sqlmock expectations: %v", err)
	}
}

func TestTrackUsage_SqlmockError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	tracker := NewUsageTracker(db, nil)

	mock.ExpectExec(`INSERT INTO llm_usage`).
		WillReturnError(sql.ErrConnDone)

	usage := &ModelUsage{
		OperationType:    "qualification",
		EntityType:       "lead",
		EntityID:         "lead-999",
		ModelName:        "meta-llama/Llama-3.1-8B-Instruct",
		ModelProvider:    "huggingface",
		RequestTimestamp: time.Now().UTC(),
		Success:          true,
	}

	err = tracker.TrackUsage(usage)
	if err == nil {
		t.Fatal("TrackUsage succeeded, want error")
	}
	if !strings.Contains(err.Error(), "failed to record model usage") {
		t.Errorf("error = %q, want wrapped insert failure", err.Error())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet sqlmock expectations: %v", err)
	}
}

func TestGetUsageStats_Sqlmock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	tracker := NewUsageTracker(db, nil)

	since := time.Now().UTC().Add(-24 * time.Hour)
	mock.ExpectQuery(`SELECT.*FROM llm_usage.*WHERE request_timestamp`).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{
			"total_requests", "successful_requests", "total_tokens", "total_cost", "unique_models",
		}).AddRow(10, 8, 1500, 0.50, 3))

	stats, err := tracker.GetUsageStats(since)
	if err != nil {
		t.Fatalf("GetUsageStats failed: %v", err)
	}

	if stats.TotalRequests != 10 {
		t.Errorf("TotalRequests = %d, want 10", stats.TotalRequests)
	}
	if stats.SuccessfulRequests != 8 {
		t.Errorf("SuccessfulRequests = %d, want 8", stats.SuccessfulRequests)
	}
	if math.Abs(stats.SuccessRate-0.8) > 1e-9 {
		t.Errorf("SuccessRate = %v, want 0.8", stats.SuccessRate)
	}
	if stats.UniqueModels != 3 {
		t.Errorf("UniqueModels = %d, want 3", stats.UniqueModels)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet sqlmock expectations: %v", err)
	}
}

func TestGetModelBreakdown_Sqlmock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	tracker := NewUsageTracker(db, nil)

	since := time.Now().UTC().Add(-24 * time.Hour)
	mock.ExpectQuery(`SELECT.*FROM llm_usage.*GROUP BY model_name, model_provider`).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{
			"model_name", "model_provider", "request_count", "total_tokens", "total_cost", "avg_response_time_ms",
		}).
			AddRow("meta-llama/Llama-3.1-8B-Instruct", "huggingface", 12, 4800, 0.264, 245.5).
			AddRow("mistralai/Mistral-7B-Instruct-v0.3", "huggingface", 3, 900, 0.049, nil))

	breakdown, err := tracker.GetModelBreakdown(since)
	if err != nil {
		t.Fatalf("GetModelBreakdown failed: %v", err)
	}

	if len(breakdown) != 2 {
		t.Fatalf("breakdown has %d models, want 2", len(breakdown))
	}
	if breakdown[0].RequestCount != 12 {
		t.Errorf("breakdown[0].RequestCount = %d, want 12", breakdown[0].RequestCount)
	}
	if breakdown[0].AvgResponseTimeMs == nil || *breakdown[0].AvgResponseTimeMs != 245.5 {
		t.Errorf("breakdown[0].AvgResponseTimeMs = %v, want 245.5", breakdown[0].AvgResponseTimeMs)
	}
	if breakdown[1].AvgResponseTimeMs != nil {
		t.Errorf("breakdown[1].AvgResponseTimeMs = %v, want nil", breakdown[1].AvgResponseTimeMs)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet sqlmock expectations: %v", err)
	}
}
