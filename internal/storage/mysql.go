package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"cvision/internal/config"
	"cvision/internal/storage/models"
	"cvision/internal/tracing"
	"cvision/internal/types"
)

var mysqlTracer = otel.Tracer("cvision/storage/mysql")

// ErrProfileNotFound 指定文件名的档案不存在
var ErrProfileNotFound = errors.New("profile not found")

// ErrDuplicateTextMD5 相同文本的档案已存在（raw_text_md5 唯一索引冲突）
var ErrDuplicateTextMD5 = errors.New("duplicate text md5")

type spanCtxKey struct{}

// GormTracingPlugin 为GORM操作创建OpenTelemetry span
type GormTracingPlugin struct {
	tracer         trace.Tracer
	dbName         string
	disableErrSkip bool
}

func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册GORM回调
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}
	if err := cb.Row().Before("gorm:row").Register("otel:before_row", p.before("ROW")); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Register("otel:after_row", p.after()); err != nil {
		return err
	}
	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("RAW")); err != nil {
		return err
	}
	return cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after())
}

func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		if p.disableErrSkip && db.Statement.SkipHooks {
			return
		}
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}

		attrs := []attribute.KeyValue{
			semconv.DBSystemMySQL,
			attribute.String("db.name", p.dbName),
			attribute.String("db.operation", operation),
			attribute.String("db.sql.table", table),
		}
		if sql := db.Statement.SQL.String(); sql != "" {
			attrs = append(attrs, attribute.String("db.statement", tracing.SafeSQL(sql)))
		}

		newCtx, span := p.tracer.Start(ctx, operation+" "+table,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(attrs...),
		)
		db.Statement.Context = context.WithValue(newCtx, spanCtxKey{}, span)
	}
}

func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value(spanCtxKey{}).(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		switch {
		case db.Error == nil:
			span.SetStatus(codes.Ok, "")
		case errors.Is(db.Error, gorm.ErrRecordNotFound):
			// 未找到记录属于正常业务分支
			span.SetAttributes(attribute.String("error.type", "record_not_found"))
			span.SetStatus(codes.Ok, "record not found")
		default:
			tracing.RecordError(span, db.Error, tracing.ErrorTypeDB)
		}
	}
}

// NewGormTracingPlugin 创建GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer:         mysqlTracer,
		dbName:         dbName,
		disableErrSkip: true,
	}
}

// MySQL 档案与关系的关系型存储
type MySQL struct {
	db     *gorm.DB
	cfg    *config.MySQLConfig
	logger zerolog.Logger
}

// NewMySQL 连接MySQL、注册追踪插件并迁移表结构
func NewMySQL(cfg *config.MySQLConfig, log zerolog.Logger) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
		PrepareStmt:                              true,
		TranslateError:                           true,
	})
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	m := &MySQL{db: db, cfg: cfg, logger: log}
	if err := m.autoMigrateSchema(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	log.Info().Str("database", cfg.Database).Msg("成功连接到MySQL并完成表结构迁移")
	return m, nil
}

func gormLogLevel(level int) logger.LogLevel {
	switch level {
	case 1:
		return logger.Silent
	case 2:
		return logger.Error
	case 3:
		return logger.Warn
	case 4:
		return logger.Info
	default:
		return logger.Warn
	}
}

func (m *MySQL) autoMigrateSchema() error {
	silentDB := m.db.Session(&gorm.Session{Logger: logger.Default.LogMode(logger.Silent)})
	if err := silentDB.AutoMigrate(
		&models.Profile{},
		&models.ProfileRelationship{},
		&models.OutboxMessage{},
	); err != nil {
		return fmt.Errorf("GORM自动迁移失败: %w", err)
	}
	return nil
}

// DB 返回GORM连接，供 outbox 中继使用
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// OutboxTarget outbox 消息的投递目标
type OutboxTarget struct {
	Exchange   string
	RoutingKey string
}

// SaveProfileResult 在一个事务中写入档案、关系和 outbox 事件。
// 同名文件的旧档案及其关系会被替换，返回档案ID。
func (m *MySQL) SaveProfileResult(ctx context.Context, result *types.ProfileResult, textMD5, skillStrategy, objectKey string, target OutboxTarget) (string, error) {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.SaveProfileResult", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	if result == nil || result.Profile == nil {
		err := fmt.Errorf("档案结果不能为空")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return "", err
	}
	span.SetAttributes(
		semconv.DBSystemMySQL,
		attribute.String("db.name", m.cfg.Database),
		attribute.String("profile.filename", result.Profile.Filename),
		attribute.Int("profile.relationships", len(result.Relationships)),
	)

	id, err := uuid.NewV7()
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return "", fmt.Errorf("生成UUIDv7失败: %w", err)
	}
	profileID := id.String()

	row := ProfileToModel(profileID, result, textMD5, skillStrategy)
	row.ProfileObjectKey = objectKey

	payload, err := json.Marshal(ProfileExtractedEvent{
		ProfileID:          profileID,
		Filename:           row.Filename,
		RawTextMD5:         textMD5,
		SkillsCount:        len(result.Profile.Skills),
		RelationshipsCount: len(result.Relationships),
		RelationshipTypes:  result.RelationshipSet().CountByType(),
		ProfileObjectKey:   objectKey,
		ExtractedAt:        time.Now().UTC(),
	})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return "", fmt.Errorf("序列化事件失败: %w", err)
	}

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var oldIDs []string
		if err := tx.Model(&models.Profile{}).Where("filename = ?", row.Filename).Pluck("profile_id", &oldIDs).Error; err != nil {
			return fmt.Errorf("查询旧档案失败: %w", err)
		}
		if len(oldIDs) > 0 {
			if err := tx.Where("profile_id IN ?", oldIDs).Delete(&models.ProfileRelationship{}).Error; err != nil {
				return fmt.Errorf("删除旧关系失败: %w", err)
			}
			if err := tx.Where("profile_id IN ?", oldIDs).Delete(&models.Profile{}).Error; err != nil {
				return fmt.Errorf("删除旧档案失败: %w", err)
			}
		}

		// 关系单独批量写入
		rels := row.Relationships
		row.Relationships = nil
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("写入档案失败: %w", err)
		}
		if len(rels) > 0 {
			if err := tx.CreateInBatches(&rels, 200).Error; err != nil {
				return fmt.Errorf("写入关系失败: %w", err)
			}
		}
		row.Relationships = rels

		if target.Exchange == "" {
			return nil
		}
		msg := models.OutboxMessage{
			AggregateID:      profileID,
			EventType:        models.EventProfileExtracted,
			Payload:          datatypes.JSON(payload),
			TargetExchange:   target.Exchange,
			TargetRoutingKey: target.RoutingKey,
			Status:           models.OutboxStatusPending,
		}
		if err := tx.Create(&msg).Error; err != nil {
			return fmt.Errorf("写入outbox消息失败: %w", err)
		}
		return nil
	})
	if err != nil {
		err = translateSaveError(err, textMD5)
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return "", err
	}

	span.SetAttributes(attribute.String("profile.id", profileID))
	span.SetStatus(codes.Ok, "")
	return profileID, nil
}

// translateSaveError 并发写入相同文本时由唯一索引兜底
func translateSaveError(err error, textMD5 string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s", ErrDuplicateTextMD5, textMD5)
	}
	return err
}

// GetProfileByFilename 读取档案及其有序关系
func (m *MySQL) GetProfileByFilename(ctx context.Context, filename string) (*types.ProfileResult, error) {
	var row models.Profile
	err := m.db.WithContext(ctx).
		Preload("Relationships", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Where("filename = ?", filename).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s: %w", filename, ErrProfileNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("查询档案失败: %w", err)
	}
	return ModelToProfileResult(&row), nil
}

// ListProfiles 按文件名排序返回最多 limit 条档案（limit<=0 不限制）
func (m *MySQL) ListProfiles(ctx context.Context, limit int) ([]*types.ProfileResult, error) {
	var rows []models.Profile
	q := m.db.WithContext(ctx).
		Preload("Relationships", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "filename"}})
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询档案列表失败: %w", err)
	}

	out := make([]*types.ProfileResult, 0, len(rows))
	for i := range rows {
		out = append(out, ModelToProfileResult(&rows[i]))
	}
	return out, nil
}

// ExistsTextMD5 判断相同文本是否已经入库
func (m *MySQL) ExistsTextMD5(ctx context.Context, textMD5 string) (bool, error) {
	var count int64
	if err := m.db.WithContext(ctx).Model(&models.Profile{}).Where("raw_text_md5 = ?", textMD5).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
