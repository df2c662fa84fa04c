package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", cfg.SampleRate)
	}
	if cfg.ChunkSize != 1024 {
		t.Errorf("ChunkSize = %d, want 1024", cfg.ChunkSize)
	}
	if cfg.BufferDuration != 10.0 {
		t.Errorf("BufferDuration = %v, want 10.0", cfg.BufferDuration)
	}
	if cfg.MinBatchDuration != 3.0 || cfg.MaxBatchDuration != 30.0 {
		t.Errorf("batch duration defaults = %v/%v, want 3.0/30.0", cfg.MinBatchDuration, cfg.MaxBatchDuration)
	}
	if cfg.SilenceDurationThreshold != 0.5 || cfg.BatchOverlap != 0.5 {
		t.Errorf("silence/overlap defaults = %v/%v, want 0.5/0.5", cfg.SilenceDurationThreshold, cfg.BatchOverlap)
	}
	if cfg.SilenceThreshold != 500.0 {
		t.Errorf("SilenceThreshold = %v, want 500.0", cfg.SilenceThreshold)
	}
	if cfg.TranscriptionModel != "groq" {
		t.Errorf("TranscriptionModel = %q, want groq", cfg.TranscriptionModel)
	}
	if len(cfg.ModelFallback) != 0 {
		t.Errorf("ModelFallback = %v, want empty", cfg.ModelFallback)
	}
	if cfg.APITimeout != 30.0 || cfg.MaxRetries != 3 || cfg.RetryDelay != 1.0 {
		t.Errorf("retry defaults = %v/%d/%v, want 30.0/3/1.0", cfg.APITimeout, cfg.MaxRetries, cfg.RetryDelay)
	}
	if cfg.InsightInterval != 60.0 || cfg.QuestionUpdateInterval != 15.0 || cfg.NumDynamicQuestions != 4 {
		t.Errorf("ticker defaults = %v/%v/%d, want 60.0/15.0/4", cfg.InsightInterval, cfg.QuestionUpdateInterval, cfg.NumDynamicQuestions)
	}
	if cfg.ServerHost != "localhost" || cfg.ServerPort != 8765 {
		t.Errorf("server defaults = %q/%d, want localhost/8765", cfg.ServerHost, cfg.ServerPort)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LIVE_TRANSCRIPTS_MAX_RETRIES", "7")
	t.Setenv("LIVE_TRANSCRIPTS_TRANSCRIPTION_MODEL", "openai")
	t.Setenv("LIVE_TRANSCRIPTS_SERVER_PORT", "9001")

	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.MaxRetries != 7 {
		t.Errorf("MaxRetries = %d, want 7 from env override", cfg.MaxRetries)
	}
	if cfg.TranscriptionModel != "openai" {
		t.Errorf("TranscriptionModel = %q, want openai from env override", cfg.TranscriptionModel)
	}
	if cfg.ServerPort != 9001 {
		t.Errorf("ServerPort = %d, want 9001 from env override", cfg.ServerPort)
	}
}

func TestLoadAPIKeysFromEnv(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "groq-secret")
	t.Setenv("OPENAI_API_KEY", "openai-secret")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("LOKUTOR_API_KEY", "lokutor-secret")

	_, keys, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if keys.Groq != "groq-secret" {
		t.Errorf("Groq = %q, want groq-secret", keys.Groq)
	}
	if keys.OpenAI != "openai-secret" {
		t.Errorf("OpenAI = %q, want openai-secret", keys.OpenAI)
	}
	if keys.Anthropic != "" {
		t.Errorf("Anthropic = %q, want empty", keys.Anthropic)
	}
	if keys.Lokutor != "lokutor-secret" {
		t.Errorf("Lokutor = %q, want lokutor-secret", keys.Lokutor)
	}
}
