package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/signalsfoundry/territory-controller/core"
	"github.com/signalsfoundry/territory-controller/internal/logging"
	"github.com/signalsfoundry/territory-controller/internal/matchdata"
	"github.com/signalsfoundry/territory-controller/kb"
	"github.com/signalsfoundry/territory-controller/model"
)

func main() {
	file := flag.String("file", "", "match-data file to replay (.json, .json.zst or .json.lz4)")
	arenaPath := flag.String("arena", "", "arena YAML the match was played on (built-in arena when empty)")
	validateArena := flag.Bool("validate-arena", false, "only validate the arena definition")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	arena, err := loadArena(*arenaPath)
	if err != nil {
		log.Error(ctx, "arena invalid", logging.Err(err))
		os.Exit(1)
	}
	if *validateArena {
		fmt.Printf("arena %q ok: %d stations, %d links, %d claimants\n",
			arena.Name, len(arena.Stations), len(arena.Links), len(arena.Claimants))
		return
	}
	if *file == "" {
		log.Error(ctx, "-file is required")
		os.Exit(2)
	}

	if err := replay(*file, arena, os.Stdout); err != nil {
		log.Error(ctx, "replay failed", logging.String("file", *file), logging.Err(err))
		os.Exit(1)
	}
}

func loadArena(path string) (*core.Arena, error) {
	if path == "" {
		return core.DefaultArena()
	}
	return core.LoadArenaFile(path)
}

// replay loads and verifies a match-data file, rebuilds the final state and
// prints a summary to out.
func replay(path string, arena *core.Arena, out io.Writer) error {
	doc, err := matchdata.Load(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "match %s on %s, written %s\n", doc.MatchID, doc.Arena, doc.WrittenAt.Format(time.RFC3339))
	fmt.Fprintf(out, "digest %s verified\n", doc.Digest)

	if doc.TokenScores != nil {
		return summariseTokens(doc.TokenScores, out)
	}
	if doc.Arena != "" && doc.Arena != arena.Name {
		return fmt.Errorf("match was played on %q, replay arena is %q", doc.Arena, arena.Name)
	}

	claims := kb.NewClaimLog(arena.Stations, kb.WithLockThreshold(arena.Rules.LockedOutAfterClaim))
	if err := claims.Replay(doc.TerritoryClaims); err != nil {
		return err
	}
	digest, err := claims.Digest()
	if err != nil {
		return err
	}
	if digest != doc.Digest {
		return errors.New("replayed history digest differs from the stored one")
	}

	fmt.Fprintf(out, "%d claims replayed\n", len(doc.TerritoryClaims))
	for _, c := range arena.Claimants {
		var owned []model.StationCode
		for _, s := range claims.Stations() {
			if claims.Claimant(s) == c.ID {
				owned = append(owned, s)
			}
		}
		fmt.Fprintf(out, "%s owns %d: %v\n", c.ID, len(owned), owned)
	}
	var locked []model.StationCode
	for _, s := range claims.Stations() {
		if claims.IsLocked(s) {
			locked = append(locked, s)
		}
	}
	fmt.Fprintf(out, "locked: %v\n", locked)
	return nil
}

func summariseTokens(entries []model.TokenLogEntry, out io.Writer) error {
	last := make(map[int]model.TokenLogEntry)
	for _, e := range entries {
		last[e.TokenIndex] = e
	}
	scores := make(map[int]int)
	for _, e := range last {
		if e.Zone < 0 {
			continue
		}
		scores[e.Zone] += e.TokenValue
	}
	zones := make([]int, 0, len(scores))
	for z := range scores {
		zones = append(zones, z)
	}
	sort.Ints(zones)

	fmt.Fprintf(out, "%d token moves replayed\n", len(entries))
	for _, z := range zones {
		fmt.Fprintf(out, "zone %d scores %d\n", z, scores[z])
	}
	return nil
}
