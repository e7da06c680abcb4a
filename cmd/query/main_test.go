package main

import (
	"bytes"
	"testing"
)

func TestPrintAnswer(t *testing.T) {
	var buf bytes.Buffer
	if err := printAnswer(&buf, "RAG pairs retrieval with generation."); err != nil {
		t.Fatal(err)
	}
	want := "\nAnswer:\n\nRAG pairs retrieval with generation.\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}
