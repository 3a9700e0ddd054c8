package commands

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/54b3r/taskagent-go/internal/domain"
	"github.com/54b3r/taskagent-go/internal/rag"
)

// lengthEmbedder embeds each text as its length, which is enough to build
// and query a flat index.
type lengthEmbedder struct{}

func (lengthEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func flatBuilder(ctx context.Context, _ *domain.Descriptor, docs []rag.Document) rag.Index {
	return rag.BuildFlat(ctx, lengthEmbedder{}, docs)
}

// isolate points HOME and the working directory at an empty temp dir so no
// real config or .env file is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("TASKAGENT_CONFIG", "")
	t.Chdir(dir)
	return dir
}

func TestIndexBackendFromEnv(t *testing.T) {
	tests := []struct {
		value   string
		want    string
		wantErr bool
	}{
		{"", backendFlat, false},
		{"flat", backendFlat, false},
		{"Qdrant", backendQdrant, false},
		{"faiss", "", true},
	}
	for _, tc := range tests {
		t.Setenv("INDEX_BACKEND", tc.value)
		got, err := indexBackendFromEnv()
		if (err != nil) != tc.wantErr {
			t.Errorf("INDEX_BACKEND=%q: error = %v, wantErr %v", tc.value, err, tc.wantErr)
		}
		if got != tc.want {
			t.Errorf("INDEX_BACKEND=%q: got %q, want %q", tc.value, got, tc.want)
		}
	}
}

func TestSelectDomains(t *testing.T) {
	t.Parallel()

	all := []*domain.Descriptor{{Name: domain.HR}, {Name: domain.Finance}, {Name: domain.Procurement}}

	got, err := selectDomains(all, nil)
	if err != nil || len(got) != 3 {
		t.Fatalf("selectDomains(nil) = %d descriptors, err %v; want all 3", len(got), err)
	}

	got, err = selectDomains(all, []string{"PROCUREMENT", "hr"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Name != domain.Procurement || got[1].Name != domain.HR {
		t.Errorf("selectDomains order = %v", got)
	}

	if _, err := selectDomains(all, []string{"legal"}); err == nil {
		t.Error("expected error for unknown domain")
	}
}

func TestBuildIndexes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	custom := filepath.Join(dir, "procurement.txt")
	if err := os.WriteFile(custom, []byte("Orders above 5000 need two approvals.\nPreferred suppliers are reviewed yearly.\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, []byte("\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	descs := []*domain.Descriptor{
		{Name: domain.HR},
		{Name: domain.Finance, CorpusPath: filepath.Join(dir, "missing.txt")},
		{Name: domain.Procurement, CorpusPath: custom},
		{Name: "empty", CorpusPath: empty},
	}
	log := slog.New(slog.DiscardHandler)

	indexes, err := buildIndexes(t.Context(), log, descs, flatBuilder)
	if err != nil {
		t.Fatalf("buildIndexes: %v", err)
	}
	if len(indexes) != len(descs) {
		t.Fatalf("got %d indexes, want %d", len(indexes), len(descs))
	}

	if !indexes[0].Enabled() || indexes[0].Size() == 0 {
		t.Errorf("builtin hr index: enabled=%v size=%d", indexes[0].Enabled(), indexes[0].Size())
	}
	if indexes[1].Enabled() {
		t.Error("missing corpus file must yield a disabled index")
	}
	if !indexes[2].Enabled() || indexes[2].Size() != 2 {
		t.Errorf("custom procurement index: enabled=%v size=%d, want 2 passages", indexes[2].Enabled(), indexes[2].Size())
	}
	if indexes[3].Enabled() {
		t.Error("empty corpus must yield a disabled index")
	}
}

func TestBuildIndexes_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := buildIndexes(ctx, slog.New(slog.DiscardHandler), []*domain.Descriptor{{Name: domain.HR}}, flatBuilder)
	if err == nil {
		t.Fatal("expected error for a cancelled context")
	}
}

// setValidEnv configures every setting collectProblems validates.
func setValidEnv(t *testing.T) {
	t.Helper()
	vars := map[string]string{
		"MODEL_PROVIDER":           "ollama",
		"EMBEDDING_PROVIDER":       "ollama",
		"EMBEDDING_MODEL":          "nomic-embed-text",
		"INDEX_BACKEND":            "flat",
		"SAP_TOKEN_URL":            "https://auth.example.com/oauth/token",
		"SAP_CLIENT_ID":            "taskagent",
		"SAP_CLIENT_SECRET":        "secret",
		"HR_LEAVE_REQUEST_URL":     "https://hr.example.com/leave",
		"HR_ONBOARDING_URL":        "https://hr.example.com/onboarding",
		"FINANCE_INVOICE_URL":      "https://fin.example.com/invoices",
		"FINANCE_BUDGET_URL":       "https://fin.example.com/budgets",
		"FINANCE_EXPENSE_URL":      "https://fin.example.com/expenses",
		"PROCUREMENT_ORDER_URL":    "https://erp.example.com/orders",
		"PROCUREMENT_SUPPLIER_URL": "https://erp.example.com/suppliers",
	}
	for k, v := range vars {
		t.Setenv(k, v)
	}
}

func TestCheckCmd_OK(t *testing.T) {
	isolate(t)
	setValidEnv(t)

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"check"})

	if err := root.ExecuteContext(t.Context()); err != nil {
		t.Fatalf("check failed: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "configuration OK") {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestCheckCmd_ReportsProblems(t *testing.T) {
	isolate(t)
	setValidEnv(t)
	t.Setenv("SAP_CLIENT_SECRET", "")
	t.Setenv("PROCUREMENT_ORDER_URL", "")

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"check"})

	if err := root.ExecuteContext(t.Context()); err == nil {
		t.Fatal("expected check to fail")
	}
	for _, want := range []string{"SAP_CLIENT_SECRET", "PROCUREMENT_ORDER_URL"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("report does not mention %s:\n%s", want, out.String())
		}
	}
}

func TestCheckCmd_ReadsDotEnv(t *testing.T) {
	dir := isolate(t)
	setValidEnv(t)
	t.Setenv("PROCUREMENT_SUPPLIER_URL", "")
	os.Unsetenv("PROCUREMENT_SUPPLIER_URL")

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("PROCUREMENT_SUPPLIER_URL=https://erp.example.com/suppliers\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"check"})

	if err := root.ExecuteContext(t.Context()); err != nil {
		t.Fatalf("check failed: %v\n%s", err, out.String())
	}
}

func TestVersionCmd(t *testing.T) {
	isolate(t)

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.ExecuteContext(t.Context()); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(out.String(), "taskagent ") {
		t.Errorf("unexpected version output %q", out.String())
	}
}

func TestRootCmd_MissingExplicitConfig(t *testing.T) {
	isolate(t)

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--config", "/nonexistent/taskagent.yaml", "version"})

	if err := root.ExecuteContext(t.Context()); err == nil {
		t.Fatal("expected error for a missing explicit config file")
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate(short) = %q", got)
	}
	if got := truncate("abcdefghij", 4); got != "abcd..." {
		t.Errorf("truncate = %q, want abcd...", got)
	}
}
