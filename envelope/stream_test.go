package envelope

import (
	"bytes"
	"errors"
	"testing"

	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/types"
)

func TestFileSealRoundTrip(t *testing.T) {
	key := testKey(3)
	data := bytes.Repeat([]byte("chunked file content "), 1000)

	chunks, baseNonce, err := SealFile(key, "file-1", data, 256)
	if err != nil {
		t.Fatalf("SealFile: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	if !chunks[len(chunks)-1].Last {
		t.Fatal("final chunk must carry the last flag")
	}

	got, err := OpenFile(key, "file-1", baseNonce, chunks)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("file round trip mismatch")
	}
}

func TestFileChunkReorderDetected(t *testing.T) {
	key := testKey(3)
	data := bytes.Repeat([]byte("0123456789"), 100)

	chunks, baseNonce, err := SealFile(key, "file-1", data, 128)
	if err != nil {
		t.Fatal(err)
	}

	swapped := append([]types.FileChunk(nil), chunks...)
	swapped[0], swapped[1] = swapped[1], swapped[0]

	if _, err := OpenFile(key, "file-1", baseNonce, swapped); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity on reordered chunks, got %v", err)
	}
}

func TestFileTruncationDetected(t *testing.T) {
	key := testKey(3)
	data := bytes.Repeat([]byte("0123456789"), 100)

	chunks, baseNonce, err := SealFile(key, "file-1", data, 128)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := OpenFile(key, "file-1", baseNonce, chunks[:len(chunks)-1]); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity on truncated stream, got %v", err)
	}
}

func TestFileIDBoundIntoChunks(t *testing.T) {
	key := testKey(3)
	chunks, baseNonce, err := SealFile(key, "file-1", []byte("payload"), 0)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := OpenFile(key, "file-2", baseNonce, chunks); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity when file id differs, got %v", err)
	}
}

func TestSealerRefusesInputAfterFinalChunk(t *testing.T) {
	sealer, err := NewFileSealer(testKey(3), "file-1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sealer.Seal([]byte("end"), true); err != nil {
		t.Fatal(err)
	}
	if _, err := sealer.Seal([]byte("more"), false); err == nil {
		t.Fatal("expected error sealing after final chunk")
	}
}
