package pg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	cfgpkg "github.com/lbeast-live/link-server/internal/config"
)

// Repository 受控端台账只读仓库。
// 场馆部署把控制器清单放在 PostgreSQL，网关启动时读取；
// 纯 YAML 部署可不启用数据库
type Repository struct {
	Pool *pgxpool.Pool
}

// 台账表结构（迁移由运维脚本管理）：
//
//	CREATE TABLE link_controllers (
//	    name           text PRIMARY KEY,
//	    transport      text NOT NULL,            -- udp | serial
//	    addr           text NOT NULL DEFAULT '',
//	    local_addr     text NOT NULL DEFAULT '',
//	    device         text NOT NULL DEFAULT '',
//	    security_level text NOT NULL DEFAULT 'none',
//	    secret         text NOT NULL DEFAULT '',
//	    debug          boolean NOT NULL DEFAULT false,
//	    enabled        boolean NOT NULL DEFAULT true
//	);

// Controllers 读取启用的控制器配置
func (r *Repository) Controllers(ctx context.Context) ([]cfgpkg.ControllerConfig, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT name, transport, addr, local_addr, device, security_level, secret, debug
		FROM link_controllers
		WHERE enabled
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query controllers: %w", err)
	}
	defer rows.Close()

	var out []cfgpkg.ControllerConfig
	for rows.Next() {
		var c cfgpkg.ControllerConfig
		if err := rows.Scan(&c.Name, &c.Transport, &c.Addr, &c.LocalAddr, &c.Device,
			&c.SecurityLevel, &c.Secret, &c.Debug); err != nil {
			return nil, fmt.Errorf("scan controller: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate controllers: %w", err)
	}
	return out, nil
}
