// Package lock は PostgreSQL のトランザクションスコープのアドバイザリロックを扱います。
package lock

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// KeyFor は名前から pg_advisory_xact_lock 用のキーを導出します
func KeyFor(parts ...string) int64 {
	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return int64(binary.BigEndian.Uint64(h.Sum(nil)[:8]))
}

// AcquireTx は tx が終了するまで保持される排他ロックを取得します。
// 他のトランザクションが同じキーを保持している場合は解放まで待機します。
func AcquireTx(ctx context.Context, tx pgx.Tx, key int64) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", key); err != nil {
		return fmt.Errorf("failed to acquire advisory lock: %w", err)
	}
	return nil
}
