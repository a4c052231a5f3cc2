package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// SQLiteStore 把目录存进单文件 SQLite。
// 检索列（reference_id/language/set_name）单独建列，完整条目以 JSON 存在 data 列。
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite 打开（必要时创建）path 处的数据库并确保表结构存在。
// path 可为 ":memory:"。
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// 每个连接的 :memory: 库彼此独立，单连接保证读写同一个库。
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("初始化表结构失败：%w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Replace 在一个事务内用 cards 整体替换目录。
// 同一 (language, set_name, id) 重复出现时后者覆盖前者。
func (s *SQLiteStore) Replace(ctx context.Context, cards []Card) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM cards`); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO cards
		(id, game, reference_id, language, set_name, rarity, number, is_foil, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range cards {
		c := &cards[i]
		data, mErr := json.Marshal(c)
		if mErr != nil {
			return mErr
		}
		var number sql.NullString
		if c.Number != nil {
			number = sql.NullString{String: *c.Number, Valid: true}
		}
		if _, err = stmt.ExecContext(ctx, c.ID, c.Game, c.ReferenceID, c.Language, c.SetName, c.Rarity, number, c.IsFoil, string(data)); err != nil {
			return fmt.Errorf("写入 %s 失败：%w", c.ID, err)
		}
	}
	return tx.Commit()
}

// Load 按写入顺序读出全部条目。
func (s *SQLiteStore) Load(ctx context.Context) ([]Card, error) {
	return s.query(ctx, `SELECT data FROM cards ORDER BY seq`)
}

// ByReference 返回同一基础卡号的所有版本（含异画/平行卡）。
func (s *SQLiteStore) ByReference(ctx context.Context, ref string) ([]Card, error) {
	return s.query(ctx, `SELECT data FROM cards WHERE reference_id = ? ORDER BY seq`, ref)
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]Card, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Card, 0, 64)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var c Card
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
