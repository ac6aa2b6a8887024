package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema lists the DDL statements the service needs, in dependency order.
// properties is owned by the listing service; it is created here so a fresh
// database is usable for local runs and tests.
var schema = []struct {
	name string
	ddl  string
}{
	{"properties", `
CREATE TABLE IF NOT EXISTS properties (
    id                    BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
    host_id               BIGINT UNSIGNED NOT NULL,
    title                 VARCHAR(255)    NOT NULL,
    price_per_night       BIGINT          NOT NULL,
    max_guests            INT             NOT NULL DEFAULT 0,
    require_host_approval BOOLEAN         NOT NULL DEFAULT FALSE,
    created_at            DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at            DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    KEY idx_properties_host (host_id),
    CONSTRAINT chk_properties_price CHECK (price_per_night > 0)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"bookings", `
CREATE TABLE IF NOT EXISTS bookings (
    id                  CHAR(36)        NOT NULL PRIMARY KEY,
    property_id         BIGINT UNSIGNED NOT NULL,
    guest_id            BIGINT UNSIGNED NOT NULL,
    confirmation_code   CHAR(10)        NOT NULL,
    status              ENUM('pending','confirmed','cancelled','completed') NOT NULL,
    check_in            DATE            NOT NULL,
    check_out           DATE            NOT NULL,
    number_of_nights    INT             NOT NULL,
    adults              INT             NOT NULL,
    children            INT             NOT NULL DEFAULT 0,
    price_per_night     BIGINT          NOT NULL,
    subtotal            BIGINT          NOT NULL,
    service_fee         BIGINT          NOT NULL,
    taxes               BIGINT          NOT NULL,
    total_price         BIGINT          NOT NULL,
    contact_name        VARCHAR(255)    NOT NULL DEFAULT '',
    contact_email       VARCHAR(255)    NOT NULL DEFAULT '',
    contact_phone       VARCHAR(64)     NOT NULL DEFAULT '',
    special_requests    TEXT            NULL,
    cancelled_at        DATETIME        NULL,
    cancelled_by        BIGINT UNSIGNED NULL,
    cancellation_reason TEXT            NULL,
    created_at          DATETIME        NOT NULL,
    updated_at          DATETIME        NOT NULL,
    UNIQUE KEY uq_bookings_confirmation_code (confirmation_code),
    KEY idx_bookings_guest (guest_id, created_at),
    KEY idx_bookings_property (property_id, created_at),
    KEY idx_bookings_status_checkout (status, check_out),
    CONSTRAINT fk_bookings_property FOREIGN KEY (property_id) REFERENCES properties (id),
    CONSTRAINT chk_bookings_range CHECK (check_in < check_out)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"blocked_dates", `
CREATE TABLE IF NOT EXISTS blocked_dates (
    property_id BIGINT UNSIGNED NOT NULL,
    day         DATE            NOT NULL,
    booking_id  CHAR(36)        NULL,
    created_at  DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE KEY uq_blocked_dates_property_day (property_id, day),
    KEY idx_blocked_dates_booking (booking_id),
    CONSTRAINT fk_blocked_dates_property FOREIGN KEY (property_id) REFERENCES properties (id),
    CONSTRAINT fk_blocked_dates_booking FOREIGN KEY (booking_id) REFERENCES bookings (id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
}

// Migrate creates any missing tables.  It is safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, s := range schema {
		if _, err := db.ExecContext(ctx, s.ddl); err != nil {
			return fmt.Errorf("create %s table: %w", s.name, err)
		}
	}
	return nil
}
