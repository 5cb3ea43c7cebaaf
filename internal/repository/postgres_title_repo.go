package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/lendman/internal/database"
	"github.com/hitoshi/lendman/internal/model"
)

// PostgresTitleRepo はPostgreSQLを使用した蔵書カタログリポジトリ。
// 接続は保持せず、呼び出しごとにQuerierを受け取る。
type PostgresTitleRepo struct{}

// NewPostgresTitleRepo はPostgresTitleRepoを生成する。
func NewPostgresTitleRepo() *PostgresTitleRepo {
	return &PostgresTitleRepo{}
}

const titleColumns = `id, name, creator, year, copies_total, copies_available, created_at`

func scanTitle(row *sql.Row) (*model.Title, error) {
	t := &model.Title{}
	err := row.Scan(&t.ID, &t.Name, &t.Creator, &t.Year, &t.CopiesTotal, &t.CopiesAvailable, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("作品の取得に失敗しました: %w", err)
	}
	return t, nil
}

// FindByID は指定IDの作品を取得する。見つからない場合はnilを返す。
func (r *PostgresTitleRepo) FindByID(ctx context.Context, q database.Querier, id string) (*model.Title, error) {
	return scanTitle(q.QueryRowContext(ctx,
		`SELECT `+titleColumns+` FROM titles WHERE id = $1`,
		id,
	))
}

// FindByIDForUpdate は指定IDの作品を行ロック付きで取得する。見つからない場合はnilを返す。
// 同一作品に対する並行トランザクションはこのロック獲得で直列化される。
func (r *PostgresTitleRepo) FindByIDForUpdate(ctx context.Context, q database.Querier, id string) (*model.Title, error) {
	return scanTitle(q.QueryRowContext(ctx,
		`SELECT `+titleColumns+` FROM titles WHERE id = $1 FOR UPDATE`,
		id,
	))
}

// Insert は作品を登録する。
func (r *PostgresTitleRepo) Insert(ctx context.Context, q database.Querier, title *model.Title) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO titles (id, name, creator, year, copies_total, copies_available, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		title.ID, title.Name, title.Creator, title.Year, title.CopiesTotal, title.CopiesAvailable, title.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("作品の登録に失敗しました: %w", err)
	}
	return nil
}

// UpdateCounts は作品の総冊数と貸出可能数を更新する。
func (r *PostgresTitleRepo) UpdateCounts(ctx context.Context, q database.Querier, id string, total, available int) error {
	result, err := q.ExecContext(ctx,
		`UPDATE titles SET copies_total = $2, copies_available = $3 WHERE id = $1`,
		id, total, available,
	)
	if err != nil {
		return fmt.Errorf("冊数の更新に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("冊数の更新結果の確認に失敗しました: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("冊数の更新対象が存在しません: %s", id)
	}
	return nil
}

// Delete は指定IDの作品を削除する。
func (r *PostgresTitleRepo) Delete(ctx context.Context, q database.Querier, id string) error {
	_, err := q.ExecContext(ctx,
		`DELETE FROM titles WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("作品の削除に失敗しました: %w", err)
	}
	return nil
}

func (r *PostgresTitleRepo) listTitles(ctx context.Context, q database.Querier, query string, args ...any) ([]*model.Title, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("作品一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var titles []*model.Title
	for rows.Next() {
		t := &model.Title{}
		if err := rows.Scan(&t.ID, &t.Name, &t.Creator, &t.Year, &t.CopiesTotal, &t.CopiesAvailable, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("作品行の読み取りに失敗しました: %w", err)
		}
		titles = append(titles, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("作品一覧の走査に失敗しました: %w", err)
	}
	return titles, nil
}

// ListAll は全作品を登録順で返す。
func (r *PostgresTitleRepo) ListAll(ctx context.Context, q database.Querier) ([]*model.Title, error) {
	return r.listTitles(ctx, q,
		`SELECT `+titleColumns+` FROM titles ORDER BY created_at, id`,
	)
}

// ListAvailable は貸出可能な複本が残る作品のみ登録順で返す。
func (r *PostgresTitleRepo) ListAvailable(ctx context.Context, q database.Querier) ([]*model.Title, error) {
	return r.listTitles(ctx, q,
		`SELECT `+titleColumns+` FROM titles WHERE copies_available > 0 ORDER BY created_at, id`,
	)
}

// escapeLikePattern はLIKE/ILIKEのメタ文字をエスケープする。
// 検索語はリテラルな部分文字列として扱う。
func escapeLikePattern(text string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(text)
}

// Search はnameまたはcreatorに部分一致する作品を登録順で返す。大文字小文字は区別しない。
func (r *PostgresTitleRepo) Search(ctx context.Context, q database.Querier, text string) ([]*model.Title, error) {
	pattern := "%" + escapeLikePattern(text) + "%"
	return r.listTitles(ctx, q,
		`SELECT `+titleColumns+` FROM titles
		 WHERE name ILIKE $1 OR creator ILIKE $1
		 ORDER BY created_at, id`,
		pattern,
	)
}
