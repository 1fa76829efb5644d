// Package database opens the MySQL pool and creates the tables the
// repositories expect.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	c := mysql.NewConfig()
	c.User = user
	c.Passwd = pass
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(host, port)
	c.DBName = name
	c.ParseTime = true // DATETIME -> time.Time
	c.Loc = time.UTC
	c.Params = map[string]string{"charset": "utf8mb4"}

	db, err := sql.Open("mysql", c.FormatDSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// schema is applied in order by EnsureSchema.  booked_seats holds a JSON
// array of seat codes; bookings are never updated after insert.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS seat_inventory (
		show_id           VARCHAR(255) NOT NULL PRIMARY KEY,
		booked_seats      JSON         NOT NULL,
		idempotency_keys  JSON         NULL,
		last_booking_meta JSON         NULL,
		version           BIGINT       NOT NULL,
		updated_at        DATETIME(3)  NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id             CHAR(36)     NOT NULL PRIMARY KEY,
		ticket_id      VARCHAR(40)  NOT NULL,
		uid            VARCHAR(128) NOT NULL DEFAULT '',
		movie_id       VARCHAR(128) NOT NULL DEFAULT '',
		movie_title    VARCHAR(255) NOT NULL DEFAULT '',
		theater        VARCHAR(255) NOT NULL DEFAULT '',
		show_date      VARCHAR(32)  NOT NULL DEFAULT '',
		show_time      VARCHAR(32)  NOT NULL DEFAULT '',
		show_id        VARCHAR(255) NOT NULL,
		seats          JSON         NOT NULL,
		total_amount   BIGINT       NOT NULL DEFAULT 0,
		payment_ref    VARCHAR(255) NOT NULL DEFAULT '',
		payment_method VARCHAR(64)  NOT NULL DEFAULT '',
		status         VARCHAR(16)  NOT NULL,
		created_at     DATETIME(3)  NOT NULL,
		checkout_ref   VARCHAR(255) NULL,
		UNIQUE KEY uq_bookings_ticket (ticket_id),
		UNIQUE KEY uq_bookings_checkout (checkout_ref, uid),
		KEY idx_bookings_uid_created (uid, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates missing tables.  Existing tables are left alone.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
