package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	streamrecord "github.com/e7canasta/orion-care-sensor/modules/stream-record"
	"github.com/e7canasta/orion-care-sensor/modules/stream-record/internal/config"
)

func loadConfig(t *testing.T, content string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stream-record.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return cfg
}

func TestRecorderConfig(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		check func(t *testing.T, rc streamrecord.Config)
	}{
		{
			name: "explicit values",
			yaml: "output-dir: /var/rec\noutput-chunks-duration: 300\nudp-port: 5000\ncodec: h264\n" +
				"output-rotate: true\nverify-output: false\njitter-latency-ms: 150\ndrain-timeout: 7\n",
			check: func(t *testing.T, rc streamrecord.Config) {
				if rc.OutputDir != "/var/rec" || rc.ChunkDuration != 5*time.Minute || !rc.Rotate {
					t.Errorf("unexpected output settings: %+v", rc)
				}
				if rc.UDPPort != 5000 || rc.Codec != streamrecord.CodecH264 || rc.ClockRate != 90000 {
					t.Errorf("unexpected stream settings: %+v", rc)
				}
				if rc.VerifyOutput {
					t.Error("verify-output: false not honored")
				}
				if rc.JitterLatency != 150*time.Millisecond || rc.DrainTimeout != 7*time.Second {
					t.Errorf("unexpected timing: %+v", rc)
				}
			},
		},
		{
			name: "defaults",
			yaml: "output-dir: /tmp/out\nudp-port: 65535\n",
			check: func(t *testing.T, rc streamrecord.Config) {
				if rc.UDPPort != 65535 || rc.Codec != streamrecord.CodecH265 {
					t.Errorf("unexpected stream settings: %+v", rc)
				}
				if !rc.VerifyOutput {
					t.Error("verify-output must default to true")
				}
				if rc.ChunkDuration != 0 || rc.DrainTimeout != 10*time.Second {
					t.Errorf("unexpected timing: %+v", rc)
				}
				if rc.MaxRetries != 5 || rc.RetryDelay != time.Second || rc.MaxRetryDelay != 30*time.Second {
					t.Errorf("unexpected retry policy: %+v", rc)
				}
			},
		},
		{
			name: "codec fallback",
			yaml: "output-dir: /tmp/out\nudp-port: 5000\ncodec: vp8\ncodec-fallback: true\n",
			check: func(t *testing.T, rc streamrecord.Config) {
				if !rc.AllowCodecFallback || rc.Codec != "VP8" {
					t.Errorf("unexpected codec settings: %+v", rc)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, recorderConfig(loadConfig(t, tt.yaml)))
		})
	}
}
