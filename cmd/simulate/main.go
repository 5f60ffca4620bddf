// cmd/simulate/main.go plays bot-only games through the room pipeline and
// records the results in the local SQLite store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/atifkhan161/contract-crown-sub004/internal/config"
	"github.com/atifkhan161/contract-crown-sub004/internal/database"
	"github.com/atifkhan161/contract-crown-sub004/internal/game"
	"github.com/atifkhan161/contract-crown-sub004/internal/models"
)

func main() {
	games := flag.Int("games", 1, "number of games to play")
	seed := flag.Int64("seed", 0, "deal seed for the first game (0 => random)")
	threshold := flag.Int("threshold", 0, "winning score (0 => WIN_THRESHOLD or 52)")
	timeout := flag.Duration("timeout", time.Minute, "time limit per game")
	flag.Parse()

	logger := logrus.New()
	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	logger.SetLevel(cfg.LogLevel)

	rules := models.RoomRules{WinThreshold: cfg.Rules.WinThreshold}
	if *threshold > 0 {
		rules.WinThreshold = *threshold
	}

	local, err := database.OpenLocal(cfg.SQLitePath)
	if err != nil {
		logger.WithError(err).Fatal("open local results")
	}
	defer local.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	for i := 0; i < *games; i++ {
		s := *seed
		if s != 0 {
			s += int64(i)
		}
		rec, err := play(ctx, rules, s, *timeout, logger)
		if err != nil {
			logger.WithError(err).Error("simulation failed")
			return
		}
		if err := local.RecordGame(ctx, rec); err != nil {
			logger.WithError(err).Error("record game")
		}
		fmt.Printf("game %d: team %d wins %d-%d after %d rounds\n",
			i+1, rec.WinningTeam, rec.FinalScore.Team1, rec.FinalScore.Team2, len(rec.Rounds))
	}

	wins, err := local.TeamWins(ctx)
	if err == nil {
		fmt.Printf("all time: team 1 %d, team 2 %d\n", wins.Team1, wins.Team2)
	}
}

// play runs one bot-only game to completion. Bot think time is zero, so the
// game is driven entirely by the room scheduler.
func play(ctx context.Context, rules models.RoomRules, seed int64, timeout time.Duration, logger *logrus.Logger) (game.GameRecord, error) {
	room, err := game.NewRoom(uuid.New(), game.BotSeats(), game.Config{
		Rules:  rules,
		Seed:   seed,
		Logger: logger.WithField("component", "simulate"),
	})
	if err != nil {
		return game.GameRecord{}, err
	}
	defer room.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := room.Start(ctx); err != nil {
		return game.GameRecord{}, err
	}
	select {
	case <-room.Finished():
	case <-ctx.Done():
		return game.GameRecord{}, fmt.Errorf("game did not finish: %w", ctx.Err())
	}

	rec, done, err := room.Result(ctx)
	if err != nil {
		return game.GameRecord{}, err
	}
	if !done {
		return game.GameRecord{}, fmt.Errorf("room %s finished without a result", room.ID)
	}
	return rec, nil
}
