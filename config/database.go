package config

import (
	"fmt"
	"strings"

	"ftc/repository"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

var enumQueries = []string{
	`CREATE TYPE ftc.application_status AS ENUM ('DRAFT', 'SUBMITTED', 'UNDER_REVIEW', 'ACCEPTED', 'REJECTED', 'WAITLISTED')`,
	`CREATE TYPE ftc.review_stage AS ENUM ('SCREENING', 'DETAILED_REVIEW', 'VIDEO_REVIEW', 'CONSENSUS', 'FINAL_DECISION')`,
	`CREATE TYPE ftc.evaluation_status AS ENUM ('PENDING', 'IN_PROGRESS', 'COMPLETED', 'REVIEWED')`,
	`CREATE TYPE ftc.recommendation AS ENUM ('ACCEPT', 'REJECT', 'WAITLIST', 'NEEDS_MORE_INFO')`,
	`CREATE TYPE ftc.final_decision AS ENUM ('ACCEPT', 'REJECT', 'WAITLIST')`,
	`CREATE TYPE ftc.competency_category AS ENUM ('TECHNICAL', 'PROJECT', 'COMMUNITY_FIT', 'VIDEO', 'ENTREPRENEURIAL', 'OVERALL')`,
}

func InitDB(host, port, user, password, dbName string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", host, port, user, password, dbName)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   "ftc.",
			SingularTable: false,
		},
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return Migrate(db)
}

// Migrate creates the ftc schema, its enum types and all tables. It is
// shared with the test setup, which runs it against a throwaway database.
func Migrate(db *gorm.DB) (*gorm.DB, error) {
	x := db.Exec(`CREATE SCHEMA IF NOT EXISTS ftc`)
	if x.Error != nil {
		return nil, x.Error
	}
	for _, query := range enumQueries {
		x := db.Exec(query)
		if x.Error != nil {
			if strings.Contains(x.Error.Error(), "already exists") {
				continue
			}
			return nil, x.Error
		}
	}

	err := db.AutoMigrate(
		&repository.User{},
		&repository.Event{},
		&repository.Application{},
		&repository.ApplicationQuestion{},
		&repository.ApplicationResponse{},
		&repository.EvaluationCriteria{},
		&repository.ReviewerAssignment{},
		&repository.ApplicationEvaluation{},
		&repository.EvaluationScore{},
		&repository.EvaluationComment{},
		&repository.ReviewerCompetency{},
		&repository.ReviewConsensus{},
	)
	if err != nil {
		return nil, err
	}
	return db, nil
}
