package main

import (
	"fmt"
	"log"
	"time"

	"hotelbooking/internal/config"
	"hotelbooking/internal/database"
	"hotelbooking/internal/domain"
	jwtsvc "hotelbooking/internal/pkg/jwt"
	"hotelbooking/internal/pkg/logger"

	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

// Dev users live only in tokens; there is no user table.
var devUsers = []struct {
	id   int64
	role domain.Role
}{
	{1, domain.RoleAdmin},
	{2, domain.RoleManager},
	{3, domain.RoleStaff},
	{4, domain.RoleConcierge},
	{100, domain.RoleGuest},
	{101, domain.RoleGuest},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config: ", err)
	}

	db, err := database.Connect(cfg.DatabaseURL, logger.NewNop())
	if err != nil {
		log.Fatal("DB connection failed: ", err)
	}

	log.Println("Running AutoMigrate...")
	if err := database.Migrate(db); err != nil {
		log.Fatal("AutoMigrate failed: ", err)
	}

	// ================== ROOMS ==================
	log.Println("Creating rooms...")
	layout := []struct {
		floor    int
		kind     domain.RoomType
		capacity int
		price    string
	}{
		{1, domain.RoomSingle, 1, "55.00"},
		{1, domain.RoomDouble, 2, "80.00"},
		{2, domain.RoomTwin, 2, "85.00"},
		{2, domain.RoomFamily, 4, "140.00"},
		{3, domain.RoomDeluxe, 2, "160.00"},
		{3, domain.RoomSuite, 4, "260.00"},
	}

	created := 0
	next := map[int]int{}
	for _, l := range layout {
		for i := 0; i < 4; i++ {
			next[l.floor]++
			room := domain.Room{
				Number:      fmt.Sprintf("%d%02d", l.floor, next[l.floor]),
				Type:        l.kind,
				Capacity:    l.capacity,
				Price:       decimal.RequireFromString(l.price),
				Status:      domain.RoomAvailable,
				Description: fmt.Sprintf("%s room, floor %d", l.kind, l.floor),
			}
			res := db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "number"}}, DoNothing: true}).Create(&room)
			if res.Error != nil {
				log.Fatalf("create room %s: %v", room.Number, res.Error)
			}
			created += int(res.RowsAffected)
		}
	}
	log.Printf("Rooms created: %d", created)

	// ================== TOKENS ==================
	j := jwtsvc.New(cfg.JWTSecret, 30*24*time.Hour)
	log.Println("Dev tokens (valid 30 days):")
	for _, u := range devUsers {
		token, err := j.GenerateToken(u.id, string(u.role))
		if err != nil {
			log.Fatalf("token for %s: %v", u.role, err)
		}
		fmt.Printf("%-9s user_id=%-3d %s\n", u.role, u.id, token)
	}

	log.Println("SEED COMPLETED")
}
