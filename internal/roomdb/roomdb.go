package roomdb

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/collabcanvas/backend/internal/auth"
)

var ErrRoomNotFound = errors.New("room not found")

type User struct {
	ID        uint   `gorm:"primaryKey"`
	Email     string `gorm:"uniqueIndex;not null"`
	Name      string
	CreatedAt time.Time
}

type Room struct {
	ID        uint   `gorm:"primaryKey"`
	Code      string `gorm:"uniqueIndex;size:6;not null"`
	Name      string
	OwnerID   uint `gorm:"index"`
	CreatedAt time.Time
}

type RoomUser struct {
	ID     uint   `gorm:"primaryKey"`
	RoomID uint   `gorm:"index;not null;uniqueIndex:idx_room_member"`
	UserID uint   `gorm:"index;not null;uniqueIndex:idx_room_member"`
	Role   string `gorm:"default:participant"`
}

// Member is one row of the roster source: every recorded member of a room.
// Live-connection status is layered on top by the gateway.
type Member struct {
	Email string
	Name  string
}

type Repository struct {
	db *gorm.DB
}

func Open(dsn string) (*Repository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&User{}, &Room{}, &RoomUser{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Repository{db: db}, nil
}

// FindRoomByCode resolves a room or ErrRoomNotFound.
func (r *Repository) FindRoomByCode(code string) (*Room, error) {
	var rm Room
	if err := r.db.Where("code = ?", code).First(&rm).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &rm, nil
}

// CodeInUse reports whether a generated code collides with an existing room.
func (r *Repository) CodeInUse(code string) (bool, error) {
	var count int64
	if err := r.db.Model(&Room{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateRoom stores a new room owned by the creator, who becomes its first
// member.
func (r *Repository) CreateRoom(code, name string, creator auth.Identity) (*Room, error) {
	user, err := r.ensureUser(creator)
	if err != nil {
		return nil, err
	}
	rm := Room{Code: code, Name: name, OwnerID: user.ID}
	err = r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rm).Error; err != nil {
			return err
		}
		return tx.Create(&RoomUser{RoomID: rm.ID, UserID: user.ID, Role: "owner"}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	return &rm, nil
}

// EnsureMembership records the identity as a participant of the room if it
// is not one already.
func (r *Repository) EnsureMembership(roomID uint, identity auth.Identity) error {
	user, err := r.ensureUser(identity)
	if err != nil {
		return err
	}
	membership := RoomUser{RoomID: roomID, UserID: user.ID}
	return r.db.Where(RoomUser{RoomID: roomID, UserID: user.ID}).
		FirstOrCreate(&membership).Error
}

// ListMembers returns every recorded member of the room identified by code.
func (r *Repository) ListMembers(code string) ([]Member, error) {
	var members []Member
	err := r.db.Model(&RoomUser{}).
		Select("users.email AS email, users.name AS name").
		Joins("JOIN users ON users.id = room_users.user_id").
		Joins("JOIN rooms ON rooms.id = room_users.room_id").
		Where("rooms.code = ?", code).
		Order("users.email").
		Scan(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *Repository) ensureUser(identity auth.Identity) (*User, error) {
	user := User{Email: identity.Email}
	err := r.db.Where(User{Email: identity.Email}).
		Attrs(User{Name: identity.Name}).
		FirstOrCreate(&user).Error
	if err != nil {
		return nil, fmt.Errorf("ensure user %s: %w", identity.Email, err)
	}
	return &user, nil
}
