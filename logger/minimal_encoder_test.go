package logger

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// stripANSI removes ANSI color codes from a string for testing
func stripANSI(str string) string {
	ansiRegex := regexp.MustCompile(`\x1b\[[0-9;]*m`)
	return ansiRegex.ReplaceAllString(str, "")
}

// TestMinimalEncoderNeverDiscardsFields is a CRITICAL test that ensures
// the minimal encoder NEVER silently discards log fields.
// This test MUST pass to prevent loss of debugging information.
func TestMinimalEncoderNeverDiscardsFields(t *testing.T) {
	// Create a minimal encoder
	encoder := newMinimalEncoder()

	// Create an entry with MANY different field types and names
	// to ensure nothing gets silently dropped
	entry := zapcore.Entry{
		Level:      zapcore.InfoLevel,
		Time:       time.Now(),
		LoggerName: "test",
		Message:    "Testing field preservation",
	}

	// Test fields that MUST appear in output
	testFields := []struct {
		field    zapcore.Field
		mustFind string // What we must find in the output
	}{
		// Business fields for lead qualification logs
		{zap.String("decision", "QUALIFIED"), "decision=QUALIFIED"},
		{zap.String("variant", "B"), "variant=B"},
		{zap.String("model", "meta-llama/Llama-3.1-8B-Instruct"), "model=meta-llama/Llama-3.1-8B-Instruct"},
		{zap.Bool("escalated", true), "escalated=true"},
		{zap.Float64("cost_usd", 0.0042), "cost_usd=0.0042"},
		{zap.Strings("issues", []string{"no_pricing_discussion", "max_length"}), "issues"},

		// Random field names that should NEVER be dropped
		{zap.String("random_field_xyz", "important_data"), "random_field_xyz=important_data"},
		{zap.Int("critical_count", 999), "critical_count=999"},
		{zap.String("user_action", "import_leads"), "user_action=import_leads"},
		{zap.String("error_details", "connection refused"), "error_details=connection refused"},

		// Fields with underscores, dots (edge cases)
		{zap.String("field_with_underscores", "test"), "field_with_underscores=test"},
		{zap.String("field.with.dots", "test2"), "field.with.dots=test2"},

		// Numeric fields
		{zap.Int32("int32_field", 42), "int32_field=42"},
		{zap.Int64("int64_field", 9999999), "int64_field=9999999"},
		{zap.Float32("float32_field", 3.5), "float32_field=3.5"},

		// Boolean fields
		{zap.Bool("success", false), "success=false"},

		// Error fields (critical for debugging!)
		{zap.Error(nil), ""}, // nil error shouldn't crash
		{zap.String("error", "oracle request failed"), "error=oracle request failed"},

		// Fields with special formatting (value-only, no key= prefix)
		{zap.String("lead_id", "ld_8f2a91"), "ld_8f2a91"},
		{zap.Int("score", 85), "85"},
		{zap.Int("duration_ms", 230), "230"},
	}

	// Encode all fields at once
	var allFields []zapcore.Field
	for _, tf := range testFields {
		allFields = append(allFields, tf.field)
	}

	buf, err := encoder.EncodeEntry(entry, allFields)
	if err != nil {
		t.Fatalf("Failed to encode entry: %v", err)
	}

	output := buf.String()
	// Strip ANSI color codes for testing
	cleanOutput := stripANSI(output)

	// CRITICAL: Check that EVERY field appears in the output
	missingFields := []string{}
	for _, tf := range testFields {
		if tf.mustFind != "" && !strings.Contains(cleanOutput, tf.mustFind) {
			missingFields = append(missingFields, tf.mustFind)
			t.Errorf("CRITICAL: Field was silently discarded from log output: %s", tf.mustFind)
		}
	}

	if len(missingFields) > 0 {
		t.Fatalf("CRITICAL BUG: Logger is silently discarding %d fields! Missing: %v\nClean output was: %s\nRaw output was: %s",
			len(missingFields), missingFields, cleanOutput, output)
	}
}

// TestMinimalEncoderFieldCount ensures that the NUMBER of fields in equals
// the number of fields that appear in the output (minus special formatting)
func TestMinimalEncoderFieldCount(t *testing.T) {
	encoder := newMinimalEncoder()

	entry := zapcore.Entry{
		Level:      zapcore.InfoLevel,
		Time:       time.Now(),
		LoggerName: "test",
		Message:    "Field count test",
	}

	// Add exactly 10 unique fields
	fields := []zapcore.Field{
		zap.String("field1", "value1"),
		zap.String("field2", "value2"),
		zap.String("field3", "value3"),
		zap.String("field4", "value4"),
		zap.String("field5", "value5"),
		zap.Int("field6", 6),
		zap.Int("field7", 7),
		zap.Bool("field8", true),
		zap.Float64("field9", 9.9),
		zap.String("field10", "value10"),
	}

	buf, err := encoder.EncodeEntry(entry, fields)
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	output := buf.String()

	// Count how many field assignments appear (looking for = sign)
	// Each field should produce a "key=value" pattern
	fieldCount := strings.Count(output, "field1=") +
		strings.Count(output, "field2=") +
		strings.Count(output, "field3=") +
		strings.Count(output, "field4=") +
		strings.Count(output, "field5=") +
		strings.Count(output, "field6=") +
		strings.Count(output, "field7=") +
		strings.Count(output, "field8=") +
		strings.Count(output, "field9=") +
		strings.Count(output, "field10=")

	if fieldCount != 10 {
		t.Errorf("Expected 10 fields in output, but found %d. Output: %s", fieldCount, output)
	}
}

// TestBatchProgressFormatting tests the compact rendering of batch
// qualification progress logs: processed/total collapse into "(X/Y leads)"
// and IDs render value-only in their own color.
func TestBatchProgressFormatting(t *testing.T) {
	encoder := newMinimalEncoder()

	entry := zapcore.Entry{
		Level:      zapcore.InfoLevel,
		Time:       time.Now(),
		LoggerName: "run",
		Message:    "Qualification batch progress",
	}

	fields := []zapcore.Field{
		zap.String("job_id", "job_01j9"),
		zap.Int("processed", 19),
		zap.Int("total", 40),
		zap.Int("score", 75),
		zap.Int("duration_ms", 420),
	}

	buf, err := encoder.EncodeEntry(entry, fields)
	if err != nil {
		t.Fatalf("Failed to encode batch progress log: %v", err)
	}

	cleanOutput := stripANSI(buf.String())

	required := []string{
		"job_01j9",
		"(19/40 leads)",
		"75 pts",
		"420ms",
	}
	for _, want := range required {
		if !strings.Contains(cleanOutput, want) {
			t.Errorf("batch progress output missing %q\nFull output: %s", want, cleanOutput)
		}
	}

	// IDs and progress render value-only; key= prefixes would defeat the
	// compact format
	notWanted := []string{"job_id=", "processed=", "total=", "score=", "duration_ms="}
	for _, unwanted := range notWanted {
		if strings.Contains(cleanOutput, unwanted) {
			t.Errorf("special field leaked key=value form %q\nFull output: %s", unwanted, cleanOutput)
		}
	}
}

// TestQualificationResultLogging covers the exact field set the agent emits
// when a lead finishes qualification.
func TestQualificationResultLogging(t *testing.T) {
	encoder := newMinimalEncoder()

	entry := zapcore.Entry{
		Level:      zapcore.InfoLevel,
		Time:       time.Now(),
		LoggerName: "agent",
		Message:    "Lead qualified",
	}

	fields := []zapcore.Field{
		zap.String("lead_id", "ld_7f2c"),
		zap.String("campaign_id", "cmp_q3_outbound"),
		zap.Int("score", 85),
		zap.String("decision", "QUALIFIED"),
		zap.Bool("escalated", false),
		zap.String("variant", "A"),
	}

	buf, err := encoder.EncodeEntry(entry, fields)
	if err != nil {
		t.Fatalf("Failed to encode qualification log: %v", err)
	}

	cleanOutput := stripANSI(buf.String())

	requiredFields := []string{
		"ld_7f2c",
		"cmp_q3_outbound",
		"85 pts",
		"decision=QUALIFIED",
		"escalated=false",
		"variant=A",
	}

	for _, required := range requiredFields {
		if !strings.Contains(cleanOutput, required) {
			t.Errorf("Qualification field missing from log: %s\nFull output: %s", required, cleanOutput)
		}
	}
}

// TestUnknownFieldTypes tests that the encoder handles all possible field types
// without crashing or silently dropping them
func TestUnknownFieldTypes(t *testing.T) {
	encoder := newMinimalEncoder()

	entry := zapcore.Entry{
		Level:      zapcore.InfoLevel,
		Time:       time.Now(),
		LoggerName: "test",
		Message:    "Testing unknown field types",
	}

	// Test various field types including complex ones
	fields := []zapcore.Field{
		zap.Complex128("complex", complex(1.0, 2.0)),
		zap.Complex64("complex64", complex64(complex(3.0, 4.0))),
		zap.Duration("duration", 5*time.Second),
		zap.Time("timestamp", time.Now()),
		zap.Uint("uint", 100),
		zap.Uint8("uint8", 200),
		zap.Uint16("uint16", 30000),
		zap.Uint32("uint32", 4000000),
		zap.Uint64("uint64", 5000000000),
		zap.Uintptr("uintptr", 0xDEADBEEF),
		zap.ByteString("bytes", []byte("hello world")),
		zap.Binary("binary", []byte{0x01, 0x02, 0x03}),
	}

	buf, err := encoder.EncodeEntry(entry, fields)
	if err != nil {
		t.Fatalf("Failed to encode complex types: %v", err)
	}

	output := buf.String()
	cleanOutput := stripANSI(output)

	// Verify that SOME representation of each field appears
	// We don't care about exact formatting, just that it's not silently dropped
	expectedSubstrings := []string{
		"complex",
		"complex64",
		"duration",
		"timestamp",
		"uint",
		"bytes",
		"binary",
	}

	for _, expected := range expectedSubstrings {
		if !strings.Contains(cleanOutput, expected) {
			t.Errorf("Field with key '%s' was completely dropped from output: %s", expected, cleanOutput)
		}
	}
}

// TestLevelBadges verifies INFO lines stay calm while WARN/ERROR get badges
func TestLevelBadges(t *testing.T) {
	encoder := newMinimalEncoder()

	tests := []struct {
		name      string
		level     zapcore.Level
		wantBadge string
	}{
		{"info has no badge", zapcore.InfoLevel, ""},
		{"warn badge", zapcore.WarnLevel, "WARN"},
		{"error badge", zapcore.ErrorLevel, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := zapcore.Entry{
				Level:      tt.level,
				Time:       time.Now(),
				LoggerName: "server",
				Message:    "status check",
			}

			buf, err := encoder.EncodeEntry(entry, nil)
			if err != nil {
				t.Fatalf("Failed to encode: %v", err)
			}

			cleanOutput := stripANSI(buf.String())

			if tt.wantBadge == "" {
				if strings.Contains(cleanOutput, "INFO") {
					t.Errorf("info line should not carry a level badge: %s", cleanOutput)
				}
				return
			}
			if !strings.Contains(cleanOutput, tt.wantBadge) {
				t.Errorf("expected %s badge in output: %s", tt.wantBadge, cleanOutput)
			}
		})
	}
}

func TestAbbreviateName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"server", "server"},
		{"run.worker", "r.worker"},
		{"ai.huggingface", "a.huggingface"},
		{"agent", "agent"},
	}

	for _, tt := range tests {
		if got := abbreviateName(tt.in); got != tt.want {
			t.Errorf("abbreviateName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestColorizeMessageBrackets checks identity brackets keep their content
// and the full message text survives colorization
func TestColorizeMessageBrackets(t *testing.T) {
	messages := []string{
		"[job:job_01j9] started",
		"[lead:ld_7f2c] scored [qualify]",
		"[campaign:cmp_q3] import complete",
		"plain message without brackets",
	}

	for _, msg := range messages {
		colorized := colorizeMessage(msg)
		if stripANSI(colorized) != msg {
			t.Errorf("colorizeMessage altered text: got %q, want %q", stripANSI(colorized), msg)
		}
	}
}

// TestThemeSwitching ensures SetTheme only accepts known themes and
// the encoder emits output under both
func TestThemeSwitching(t *testing.T) {
	original := currentTheme
	defer SetTheme(original)

	SetTheme("gruvbox")
	if currentTheme != "gruvbox" {
		t.Errorf("SetTheme(gruvbox) not applied, theme = %s", currentTheme)
	}

	SetTheme("not-a-theme")
	if currentTheme != "gruvbox" {
		t.Errorf("SetTheme should reject unknown themes, theme = %s", currentTheme)
	}

	SetTheme("everforest")
	if currentTheme != "everforest" {
		t.Errorf("SetTheme(everforest) not applied, theme = %s", currentTheme)
	}

	// Both themes must produce a renderable line
	for _, theme := range []string{"gruvbox", "everforest"} {
		SetTheme(theme)
		encoder := newMinimalEncoder()
		entry := zapcore.Entry{
			Level:      zapcore.InfoLevel,
			Time:       time.Now(),
			LoggerName: "server",
			Message:    "[lead:ld_1] theme check",
		}
		buf, err := encoder.EncodeEntry(entry, []zapcore.Field{zap.Int("score", 60)})
		if err != nil {
			t.Fatalf("EncodeEntry failed under theme %s: %v", theme, err)
		}
		clean := stripANSI(buf.String())
		if !strings.Contains(clean, "theme check") || !strings.Contains(clean, "60 pts") {
			t.Errorf("theme %s output malformed: %s", theme, clean)
		}
	}
}
