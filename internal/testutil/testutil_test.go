package testutil

import (
	"fmt"
	"net/http"
	"sync"
	"testing"
)

func TestAssertStatusCode_Matching(t *testing.T) {
	fakeT := &testing.T{}
	AssertStatusCode(fakeT, http.StatusOK, http.StatusOK)
	if fakeT.Failed() {
		t.Error("expected no failure for matching status codes")
	}
}

func TestLocalRequest(t *testing.T) {
	req := LocalRequest(http.MethodGet, "/debug/pending")
	if req.Method != http.MethodGet || req.URL.Path != "/debug/pending" {
		t.Errorf("request = %s %s", req.Method, req.URL.Path)
	}
	if req.RemoteAddr != "127.0.0.1:12345" {
		t.Errorf("RemoteAddr = %q, want loopback", req.RemoteAddr)
	}
}

func TestLineBuffer(t *testing.T) {
	var b LineBuffer
	if b.Lines() != nil {
		t.Fatal("expected no lines from an empty buffer")
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fmt.Fprintf(&b, "line %d\n", i)
		}(i)
	}
	wg.Wait()

	if got := len(b.Lines()); got != 10 {
		t.Errorf("len(Lines()) = %d, want 10", got)
	}
}
