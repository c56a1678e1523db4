package models

import (
	"time"

	"gorm.io/datatypes"
)

// 档案处理状态
const (
	ProfileStatusExtracted = "EXTRACTED"
	ProfileStatusDuplicate = "DUPLICATE"
)

// Profile 档案主表，集合字段以 JSON 数组存储
type Profile struct {
	ProfileID             string         `gorm:"type:char(36);primaryKey"`
	Filename              string         `gorm:"type:varchar(255);not null;uniqueIndex:idx_profiles_filename"`
	Name                  string         `gorm:"type:varchar(255)"`
	Locations             datatypes.JSON `gorm:"type:json"`
	EducationInstitutions datatypes.JSON `gorm:"type:json"`
	Degrees               datatypes.JSON `gorm:"type:json"`
	Emails                datatypes.JSON `gorm:"type:json"`
	Phones                datatypes.JSON `gorm:"type:json"`
	Skills                datatypes.JSON `gorm:"type:json"`
	JobTitles             datatypes.JSON `gorm:"type:json"`
	LanguagesSpoken       datatypes.JSON `gorm:"type:json"`
	Certifications        datatypes.JSON `gorm:"type:json"`
	Links                 datatypes.JSON `gorm:"type:json"`
	ExperienceYears       *int           `gorm:"type:int"`
	Summary               *string        `gorm:"type:text"`
	RawTextMD5            string         `gorm:"type:char(32);uniqueIndex:uk_profiles_text_md5"`
	SkillStrategy         string         `gorm:"type:varchar(20)"`
	RelationshipsCount    int            `gorm:"default:0"`
	Status                string         `gorm:"type:varchar(20);default:'EXTRACTED';index:idx_profiles_status"`
	ProfileObjectKey      string         `gorm:"type:varchar(512)"` // MinIO 中结果 JSON 的对象键
	CreatedAt             time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt             time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	Relationships []ProfileRelationship `gorm:"foreignKey:ProfileID;references:ProfileID"`
}

func (Profile) TableName() string {
	return "profiles"
}

// ProfileRelationship 推断出的关系，一行一条，Position 保留输出顺序
type ProfileRelationship struct {
	ID            uint64  `gorm:"primaryKey;autoIncrement"`
	ProfileID     string  `gorm:"type:char(36);not null;index:idx_relationships_profile_pos,priority:1"`
	Position      int     `gorm:"not null;index:idx_relationships_profile_pos,priority:2"`
	Type          string  `gorm:"type:varchar(32);not null;index:idx_relationships_type"`
	Skill         string  `gorm:"type:varchar(255)"`
	JobTitle      string  `gorm:"type:varchar(255)"`
	Degree        string  `gorm:"type:varchar(255)"`
	Institution   string  `gorm:"type:varchar(512)"`
	Certification string  `gorm:"type:varchar(255)"`
	City          *string `gorm:"type:varchar(255)"`
	Country       *string `gorm:"type:varchar(255)"`
}

func (ProfileRelationship) TableName() string {
	return "profile_relationships"
}
