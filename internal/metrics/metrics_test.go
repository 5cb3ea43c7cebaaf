package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ MetricsCollector = (*Collector)(nil)
var _ MetricsCollector = NopCollector{}

// 操作成功カウンターの記録を検証
func TestCollector_RecordOperationSuccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordOperationSuccess("borrow", 5*time.Millisecond)
	c.RecordOperationSuccess("borrow", 8*time.Millisecond)
	c.RecordOperationSuccess("return", 3*time.Millisecond)

	if got := testutil.ToFloat64(c.opSuccess.WithLabelValues("borrow")); got != 2 {
		t.Errorf("borrow success count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.opSuccess.WithLabelValues("return")); got != 1 {
		t.Errorf("return success count = %v, want 1", got)
	}
}

// 操作失敗カウンターがエラーコード別に記録されることを検証
func TestCollector_RecordOperationFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordOperationFailure("borrow", "COPIES_UNAVAILABLE", 2*time.Millisecond)
	c.RecordOperationFailure("borrow", "COPIES_UNAVAILABLE", 2*time.Millisecond)
	c.RecordOperationFailure("borrow", "DUPLICATE_LOAN", 1*time.Millisecond)

	if got := testutil.ToFloat64(c.opFailure.WithLabelValues("borrow", "COPIES_UNAVAILABLE")); got != 2 {
		t.Errorf("unavailable failure count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.opFailure.WithLabelValues("borrow", "DUPLICATE_LOAN")); got != 1 {
		t.Errorf("duplicate failure count = %v, want 1", got)
	}
}

// メトリクスがレジストリに登録され収集されることを検証
func TestCollector_Registration(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordOperationSuccess("add_title", time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather returned error: %v", err)
	}

	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	for _, name := range []string{
		"lendman_operation_success_total",
		"lendman_operation_duration_seconds",
	} {
		if !found[name] {
			t.Errorf("metric %q not registered", name)
		}
	}
}

// NopCollectorが安全に呼び出せることを検証
func TestNopCollector(t *testing.T) {
	var c NopCollector
	c.RecordOperationSuccess("borrow", time.Millisecond)
	c.RecordOperationFailure("borrow", "STORAGE_FAILURE", time.Millisecond)
}
