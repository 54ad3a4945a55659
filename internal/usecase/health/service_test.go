package health

import (
	"context"
	"errors"
	"testing"
)

type mockDBPinger struct {
	err error
}

func (m *mockDBPinger) Ping(_ context.Context) error { return m.err }

type mockEmbeddingChecker struct {
	err error
}

func (m *mockEmbeddingChecker) HealthCheck(_ context.Context) error { return m.err }

func TestCheck(t *testing.T) {
	down := errors.New("down")

	tests := []struct {
		name      string
		dbErr     error
		embedding EmbeddingChecker
		want      Status
		wantDB    CheckResult
		wantEmb   CheckResult // empty means the check must be absent
	}{
		{name: "all healthy", embedding: &mockEmbeddingChecker{}, want: Healthy, wantDB: CheckOK, wantEmb: CheckOK},
		{name: "database down", dbErr: down, embedding: &mockEmbeddingChecker{}, want: Degraded, wantDB: CheckError, wantEmb: CheckOK},
		{name: "embedding down", embedding: &mockEmbeddingChecker{err: down}, want: Degraded, wantDB: CheckOK, wantEmb: CheckError},
		{name: "both down", dbErr: down, embedding: &mockEmbeddingChecker{err: down}, want: Unhealthy, wantDB: CheckError, wantEmb: CheckError},
		{name: "no embedding checker", want: Healthy, wantDB: CheckOK},
		{name: "no embedding checker, database down", dbErr: down, want: Unhealthy, wantDB: CheckError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(&mockDBPinger{err: tt.dbErr}, tt.embedding)
			r := svc.Check(context.Background())

			if r.Status != tt.want {
				t.Errorf("status = %q, want %q", r.Status, tt.want)
			}
			if r.Checks[ComponentDatabase] != tt.wantDB {
				t.Errorf("database = %q, want %q", r.Checks[ComponentDatabase], tt.wantDB)
			}
			got, ok := r.Checks[ComponentEmbedding]
			switch {
			case tt.wantEmb == "" && ok:
				t.Error("embedding check should be absent")
			case tt.wantEmb != "" && got != tt.wantEmb:
				t.Errorf("embedding = %q, want %q", got, tt.wantEmb)
			}
		})
	}
}
