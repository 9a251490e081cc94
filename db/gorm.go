package db

import (
	"fmt"
	"net"
	"time"

	"Soundcheck/config"
	"Soundcheck/logger"
	"Soundcheck/model"

	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Models lists every persisted model, in dependency order.
var Models = []interface{}{
	&model.User{},
	&model.Project{},
	&model.ProjectMember{},
	&model.Track{},
	&model.FeedbackEntry{},
}

// DSN builds the MySQL DSN for cfg.
func DSN(cfg *config.Config) string {
	mc := mysql.NewConfig()
	mc.User = cfg.DBUser
	mc.Passwd = cfg.DBPassword
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.DBHost, cfg.DBPort)
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

// Connect opens a gorm connection to MySQL and configures the pool.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	level := gormlogger.Warn
	if cfg.DBLogSQL {
		level = gormlogger.Info
	}

	gdb, err := gorm.Open(gormmysql.Open(DSN(cfg)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database with GORM: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	logger.Info("connected to database",
		logger.String("host", cfg.DBHost),
		logger.String("db", cfg.DBName))
	return gdb, nil
}

// Close closes the pool behind gdb.
func Close(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// binaryColumns pins byte-wise comparison where identity depends on it.
// Track titles key lineages: "Summer Vibes" and "summer vibes" are distinct.
var binaryColumns = []string{
	"ALTER TABLE tracks MODIFY title VARCHAR(100) NOT NULL COLLATE utf8mb4_bin",
}

// collationStatements returns the DDL that pins case- and accent-sensitive
// comparison for dialect. Only MySQL needs it; SQLite already compares bytes.
func collationStatements(dialect string) []string {
	if dialect != "mysql" {
		return nil
	}
	return binaryColumns
}

// AutoMigrate creates or updates the schema for every model.
func AutoMigrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("failed to auto migrate models: %w", err)
	}
	for _, stmt := range collationStatements(gdb.Dialector.Name()) {
		if err := gdb.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to set column collation: %w", err)
		}
	}
	logger.Info("models migrated", logger.Int("count", len(Models)))
	return nil
}
