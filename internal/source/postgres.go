package source

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const sensorQuery = `SELECT datetime, machine_id, volt, rotate, pressure, vibration, model, age, failure, error_id, component FROM machine_sensor_data ORDER BY datetime DESC LIMIT $1`

// Postgres читает последние показания из таблицы machine_sensor_data.
// Каждая строка превращается в те же 11 позиционных полей, что и CSV;
// NULL становится пустой строкой.
type Postgres struct {
	db    *sql.DB
	limit int
}

// NewPostgres создает источник поверх открытого пула, читающий не более limit строк
func NewPostgres(db *sql.DB, limit int) *Postgres {
	return &Postgres{db: db, limit: limit}
}

// OpenPostgres открывает пул соединений через драйвер lib/pq
func OpenPostgres(dsn string, limit int) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return NewPostgres(db, limit), nil
}

// Name возвращает имя источника для логов и отчета
func (p *Postgres) Name() string { return "postgres:machine_sensor_data" }

// HasHeader у результата запроса нет строки заголовка
func (p *Postgres) HasHeader() bool { return false }

// Records выбирает последние limit строк, от новых к старым
func (p *Postgres) Records(ctx context.Context) ([][]string, error) {
	rows, err := p.db.QueryContext(ctx, sensorQuery, p.limit)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, unreadable(p.Name(), err)
	}
	defer rows.Close()

	var records [][]string
	for rows.Next() {
		var cols [11]sql.NullString
		dest := make([]any, len(cols))
		for i := range cols {
			dest[i] = &cols[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, unreadable(p.Name(), fmt.Errorf("scan row: %w", err))
		}

		rec := make([]string, len(cols))
		for i, c := range cols {
			if c.Valid {
				rec[i] = c.String
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unreadable(p.Name(), err)
	}

	return records, nil
}

// Close закрывает пул соединений
func (p *Postgres) Close() error {
	return p.db.Close()
}
