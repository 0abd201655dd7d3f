package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/OCAP2/physbridge/internal/database"
	"github.com/OCAP2/physbridge/internal/model"
	"github.com/OCAP2/physbridge/internal/model/convert"
	"github.com/OCAP2/physbridge/internal/protocol"
)

type replayCounter struct {
	w      io.Writer
	total  int
	counts map[string]int
}

func newReplayCounter(w io.Writer) *replayCounter {
	return &replayCounter{w: w, counts: map[string]int{}}
}

func (r *replayCounter) add(c protocol.Command) error {
	r.total++
	r.counts[c.Name()]++
	_, err := fmt.Fprintf(r.w, "%6d %s %+v\n", r.total, c.Name(), c)
	return err
}

func (r *replayCounter) summary() {
	names := make([]string, 0, len(r.counts))
	for name := range r.counts {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(r.w, "%d commands\n", r.total)
	for _, name := range names {
		fmt.Fprintf(r.w, "  %-32s %d\n", name, r.counts[name])
	}
}

// replay prints one line per command of a msgpack command log followed
// by a summary.
func replay(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open command log: %w", err)
	}
	defer f.Close()

	rc := newReplayCounter(w)
	if err := protocol.ReadLog(f, rc.add); err != nil {
		return err
	}
	rc.summary()
	return nil
}

// replayDB does the same for the command log of a session stored in a
// SQLite dump. An empty uuid picks the latest session.
func replayDB(w io.Writer, path, uuid string) error {
	db, err := database.OpenSQLite(path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	var s model.Session
	q := db.Model(&model.Session{})
	if uuid != "" {
		q = q.Where("uuid = ?", uuid)
	} else {
		q = q.Order("id DESC")
	}
	if err := q.First(&s).Error; err != nil {
		return fmt.Errorf("error getting session: %w", err)
	}
	info := convert.SessionToCore(&s)
	fmt.Fprintf(w, "session %s %q started %s\n", info.UUID, info.Name, info.StartTime.Format("2006-01-02 15:04:05"))

	var rows []model.CommandLog
	err = db.Model(&model.CommandLog{}).
		Where("session_id = ?", s.ID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return fmt.Errorf("error getting command log: %w", err)
	}

	rc := newReplayCounter(w)
	for _, row := range rows {
		entry := convert.CommandLogToCore(row)
		c, err := protocol.Unmarshal(entry.Payload)
		if err != nil {
			return fmt.Errorf("step %d: %w", entry.Step, err)
		}
		if err := rc.add(c); err != nil {
			return err
		}
	}
	rc.summary()
	return nil
}
