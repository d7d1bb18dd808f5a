package commsutil

import (
	"errors"
	"testing"
)

const codecTestPrefix = "commsutil:codec_test"

func TestEncodePayload(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    string
		wantErr bool
	}{
		{name: "map", input: map[string]string{"function": "list_backup_vaults"}, want: `{"function":"list_backup_vaults"}`},
		{name: "nil", input: nil, want: "null"},
		{name: "slice", input: []string{"SUCCEEDED", "REPAIRED"}, want: `["SUCCEEDED","REPAIRED"]`},
		{name: "channel is not serializable", input: make(chan int), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodePayload(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("%s - expected error but got nil", codecTestPrefix)
				}
				return
			}
			if err != nil {
				t.Fatalf("%s - unexpected error: %v", codecTestPrefix, err)
			}
			if got := string(data); got != tt.want {
				t.Errorf("%s - EncodePayload() = %q, want %q", codecTestPrefix, got, tt.want)
			}
		})
	}
}

func TestDecodePayload(t *testing.T) {
	type turn struct {
		Function   string            `json:"function"`
		Parameters map[string]string `json:"parameters"`
	}

	var got turn
	err := DecodePayload([]byte(`{"function":"create_backup_vault","parameters":{"AWSRegion":"eu-west-1"}}`), &got)
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", codecTestPrefix, err)
	}
	if got.Function != "create_backup_vault" {
		t.Errorf("%s - Function = %q", codecTestPrefix, got.Function)
	}
	if got.Parameters["AWSRegion"] != "eu-west-1" {
		t.Errorf("%s - AWSRegion = %q", codecTestPrefix, got.Parameters["AWSRegion"])
	}
}

func TestDecodePayload_Errors(t *testing.T) {
	var target map[string]any

	if err := DecodePayload([]byte("  \n"), &target); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("%s - expected ErrEmptyMessage, got %v", codecTestPrefix, err)
	}
	if err := DecodePayload(nil, &target); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("%s - expected ErrEmptyMessage for nil body, got %v", codecTestPrefix, err)
	}
	if err := DecodePayload([]byte(`{invalid}`), &target); err == nil || errors.Is(err, ErrEmptyMessage) {
		t.Errorf("%s - expected syntax error, got %v", codecTestPrefix, err)
	}
}
