package models

import "time"

// OutboxMessage 待投递的领域事件，与报告在同一事务中写入，由 outbox 中继异步发布
type OutboxMessage struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`
	// 报告ID
	AggregateID      string `gorm:"type:char(36);not null;index"`
	EventType        string `gorm:"type:varchar(64);not null"`
	Payload          string `gorm:"type:json;not null"`
	TargetExchange   string `gorm:"type:varchar(255);not null"`
	TargetRoutingKey string `gorm:"type:varchar(255);not null"`
	// PENDING / SENT / FAILED
	Status       string     `gorm:"type:varchar(16);default:'PENDING';not null;index:idx_outbox_status_created"`
	RetryCount   int        `gorm:"default:0"`
	ErrorMessage string     `gorm:"type:text"`
	CreatedAt    time.Time  `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_outbox_status_created,sort:asc"`
	ProcessedAt  *time.Time `gorm:"type:datetime(6);null"`
}

func (OutboxMessage) TableName() string {
	return "outbox_messages"
}
