package sqlstore

import (
	"strings"

	"github.com/samber/mo"

	"parkalot/internal/model"
)

type userRow struct {
	ID               int64  `gorm:"primaryKey;autoIncrement"`
	Email            string `gorm:"type:varchar(255);not null;uniqueIndex"`
	FirstName        string `gorm:"type:varchar(100);not null"`
	LastName         string `gorm:"type:varchar(100);not null"`
	PasswordHash     string `gorm:"type:varchar(100);not null"`
	FeedToken        string `gorm:"type:varchar(64);index"`
	RegistrationDate int64  `gorm:"not null"`
}

func (userRow) TableName() string { return "users" }

type reservationRow struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	UserID     int64  `gorm:"not null;index"`
	StartTime  int64  `gorm:"not null;index"`
	EndTime    int64  `gorm:"not null"`
	Extension  int64  `gorm:"not null;default:0"`
	Recurring  bool   `gorm:"not null;default:false"`
	PreviousID *int64 `gorm:"index"`
	Status     string `gorm:"type:varchar(16);not null;index"`
	DateAdded  int64  `gorm:"not null"`

	User *userRow `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (reservationRow) TableName() string { return "reservations" }

func userFromModel(u *model.User) userRow {
	return userRow{
		ID:               u.ID,
		Email:            strings.ToLower(u.Email),
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		PasswordHash:     u.PasswordHash,
		FeedToken:        u.FeedToken,
		RegistrationDate: u.RegistrationDate,
	}
}

func (r *userRow) toModel() *model.User {
	return &model.User{
		ID:               r.ID,
		Email:            r.Email,
		FirstName:        r.FirstName,
		LastName:         r.LastName,
		PasswordHash:     r.PasswordHash,
		FeedToken:        r.FeedToken,
		RegistrationDate: r.RegistrationDate,
	}
}

func reservationFromModel(r *model.Reservation) reservationRow {
	return reservationRow{
		ID:         r.ID,
		UserID:     r.UserID,
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
		Extension:  r.Extension,
		Recurring:  r.Recurring,
		PreviousID: optionalID(r.PreviousID),
		Status:     string(r.Status),
		DateAdded:  r.DateAdded,
	}
}

func (r *reservationRow) toModel() *model.Reservation {
	out := &model.Reservation{
		ID:        r.ID,
		UserID:    r.UserID,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		Extension: r.Extension,
		Recurring: r.Recurring,
		Status:    model.Status(r.Status),
		DateAdded: r.DateAdded,
	}
	if r.PreviousID != nil {
		out.PreviousID = mo.Some(*r.PreviousID)
	}
	return out
}

func optionalID(o mo.Option[int64]) *int64 {
	if v, ok := o.Get(); ok {
		return &v
	}
	return nil
}
