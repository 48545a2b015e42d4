package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gyeh/grdload/internal/authz"
	"github.com/gyeh/grdload/internal/exitcode"
	"github.com/gyeh/grdload/internal/logging"
	"github.com/gyeh/grdload/internal/model"
	"github.com/gyeh/grdload/internal/update"
)

var (
	updateEpisode string
	updateRole    string
	updateActor   string
	updateSets    []string
	updateJSON    string
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Apply an authorized partial update to one episode",
	Example: `  grdload update --episode E1 --role finance --actor ana --set estadoRN=Aprobado --set montoRN=150000
  grdload update --episode E1 --role gestion --actor luis --json '{"validado": true}'`,
	RunE: runUpdate,
}

func init() {
	f := updateCmd.Flags()
	f.StringVar(&updateEpisode, "episode", "", "External episode id (required)")
	f.StringVar(&updateRole, "role", "", "Role of the requester (required)")
	f.StringVar(&updateActor, "actor", "", "Name recorded as reviewer when validado changes")
	f.StringArrayVar(&updateSets, "set", nil, "field=value; repeatable; value null clears the field")
	f.StringVar(&updateJSON, "json", "", "JSON object of field values, merged with --set")
	_ = updateCmd.MarkFlagRequired("episode")
	_ = updateCmd.MarkFlagRequired("role")
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	if err := cfg.RequireDSN(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	fields, err := parseFields(updateJSON, updateSets)
	if err != nil {
		log.Error().Err(err).Msg("invalid update fields")
		os.Exit(exitcode.UsageError)
	}

	store, pool := openStore(ctx, log)
	defer pool.Close()

	req := update.Request{
		Role:      updateRole,
		Actor:     updateActor,
		EpisodeID: updateEpisode,
		Fields:    fields,
	}
	opts := update.Options{Rates: cfg.BillingRates(), Log: log}

	var ep *model.Episode
	if cache := newNormCache(store, log); cache != nil {
		ep, err = update.Apply(ctx, store, cache, req, opts)
	} else {
		ep, err = update.Apply(ctx, store, nil, req, opts)
	}
	if err != nil {
		var fe *update.FieldError
		switch {
		case errors.Is(err, authz.ErrForbidden):
			log.Error().Err(err).Str("role", updateRole).Msg("update forbidden")
			os.Exit(exitcode.Forbidden)
		case errors.As(err, &fe), errors.Is(err, model.ErrEpisodeNotFound), errors.Is(err, update.ErrEmptyUpdate):
			log.Error().Err(err).Msg("update rejected")
			os.Exit(exitcode.ValidationError)
		default:
			log.Error().Err(err).Msg("update failed")
			os.Exit(exitcode.IngestError)
		}
	}

	body, err := json.MarshalIndent(ep, "", "  ")
	if err != nil {
		return fmt.Errorf("encode episode: %w", err)
	}
	fmt.Println(string(body))
	return nil
}

// parseFields merges a JSON object with field=value pairs. Pairs win.
func parseFields(rawJSON string, sets []string) (map[string]any, error) {
	fields := make(map[string]any)
	if rawJSON != "" {
		dec := json.NewDecoder(strings.NewReader(rawJSON))
		dec.UseNumber()
		if err := dec.Decode(&fields); err != nil {
			return nil, fmt.Errorf("parse --json: %w", err)
		}
	}
	for _, s := range sets {
		k, v, ok := strings.Cut(s, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("--set %q: want field=value", s)
		}
		if v == "null" {
			fields[k] = nil
			continue
		}
		fields[k] = v
	}
	return fields, nil
}
