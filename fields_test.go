package anchor

import (
	"testing"
	"time"
)

func TestKeyID(t *testing.T) {
	field := KeyID.Field("abc")
	if field.Key().Name() != "id" {
		t.Errorf("expected key 'id', got %q", field.Key().Name())
	}
}

func TestKeyPreviousID(t *testing.T) {
	field := KeyPreviousID.Field("abc")
	if field.Key().Name() != "previous_id" {
		t.Errorf("expected key 'previous_id', got %q", field.Key().Name())
	}
}

func TestKeyCandidate(t *testing.T) {
	field := KeyCandidate.Field("abc")
	if field.Key().Name() != "candidate" {
		t.Errorf("expected key 'candidate', got %q", field.Key().Name())
	}
}

func TestKeyOrigin(t *testing.T) {
	field := KeyOrigin.Field(OriginRemote.String())
	if field.Key().Name() != "origin" {
		t.Errorf("expected key 'origin', got %q", field.Key().Name())
	}
}

func TestKeyStage(t *testing.T) {
	field := KeyStage.Field(string(StageRemoteWrite))
	if field.Key().Name() != "stage" {
		t.Errorf("expected key 'stage', got %q", field.Key().Name())
	}
}

func TestKeyStoreKey(t *testing.T) {
	field := KeyStoreKey.Field(DefaultKey)
	if field.Key().Name() != "store_key" {
		t.Errorf("expected key 'store_key', got %q", field.Key().Name())
	}
}

func TestKeyError(t *testing.T) {
	field := KeyError.Field("something went wrong")
	if field.Key().Name() != "error" {
		t.Errorf("expected key 'error', got %q", field.Key().Name())
	}
}

func TestKeyDebounce(t *testing.T) {
	field := KeyDebounce.Field(100 * time.Millisecond)
	if field.Key().Name() != "debounce" {
		t.Errorf("expected key 'debounce', got %q", field.Key().Name())
	}
}
