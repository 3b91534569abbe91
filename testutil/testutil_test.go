package testutil

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/randalmurphal/proref"
)

func TestTempFile(t *testing.T) {
	content := "test content"
	path := TempFile(t, "test.txt", []byte(content))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read temp file: %v", err)
	}

	if string(data) != content {
		t.Errorf("content = %q, want %q", string(data), content)
	}
}

func TestFixedClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := FixedClock(start)

	if got := clock(); !got.Equal(start) {
		t.Errorf("first = %v, want %v", got, start)
	}
	if got := clock(); !got.Equal(start.Add(time.Second)) {
		t.Errorf("second = %v, want %v", got, start.Add(time.Second))
	}
}

func TestFakeSource(t *testing.T) {
	ctx := t.Context()
	src := NewFakeSource(Raw("A-1", "Login", "users log in"), Raw("A-2", "Logout", "users log out"))

	got, err := src.Fetch(ctx, proref.Query{IDs: []string{"A-2"}})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 1 || got[0].ID != "A-2" {
		t.Errorf("Fetch(A-2) = %+v", got)
	}

	src.Edit("A-1", "users sign in")
	all, _ := src.Fetch(ctx, proref.Query{})
	if len(all) != 2 || all[0].Description != "users sign in" {
		t.Errorf("Fetch() = %+v", all)
	}

	id, err := src.PublishComment(ctx, "A-1", "hello")
	if err != nil || id != "A-1-c1" {
		t.Errorf("PublishComment = %q, %v", id, err)
	}
	if c := src.Comments("A-1"); len(c) != 1 || c[0] != "hello" {
		t.Errorf("Comments = %v", c)
	}

	boom := errors.New("boom")
	src.FailPublish(boom)
	if _, err := src.PublishComment(ctx, "A-1", "again"); !errors.Is(err, boom) {
		t.Errorf("PublishComment error = %v, want boom", err)
	}
}

func TestFakeEmbedder(t *testing.T) {
	ctx := t.Context()
	emb := NewFakeEmbedder("m1").Set("alpha", 1, 0)

	v, err := emb.Embed(ctx, "the alpha ticket")
	if err != nil || len(v) != 2 || v[0] != 1 {
		t.Errorf("Embed(alpha) = %v, %v", v, err)
	}

	a, _ := emb.Embed(ctx, "same words here")
	b, _ := emb.Embed(ctx, "here words same")
	if len(a) != 8 {
		t.Errorf("word vector length = %d, want 8", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("word vectors differ: %v vs %v", a, b)
		}
	}

	emb.FailNext(errors.New("down"))
	if _, err := emb.Embed(ctx, "x"); err == nil {
		t.Error("expected queued error")
	}
	if emb.Calls() != 4 {
		t.Errorf("Calls = %d, want 4", emb.Calls())
	}
}
