// Package handler は運用用HTTPエンドポイントを提供する。
// ドメイン操作のAPIは公開しない。エンジンは外部コラボレータから
// 同期呼び出しされるライブラリであり、トランスポートはスコープ外。
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/lendman/internal/metrics"
)

// HealthChecker はヘルスチェックで使用するDB疎通確認のインターフェース。
// *sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	HealthChecker HealthChecker
	Gatherer      prometheus.Gatherer
}

// NewRouter は運用エンドポイントのルーティングを構成したchi.Routerを返す。
//
//	GET /health  — DB疎通を含むヘルスチェック
//	GET /metrics — Prometheusスクレイプ
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", newHealthHandler(deps.HealthChecker))
	r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))

	return r
}

func newHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")

		if err := checker.PingContext(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
			return
		}

		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
