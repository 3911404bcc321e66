package main

import (
	"github.com/litesound/flac"
	"github.com/litesound/flac/library"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func (a *app) tagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags PATH",
		Short: "Print the tags of a FLAC file as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			tags, err := flac.ReadTags(path)
			if err != nil {
				return errors.WithStack(err)
			}
			return a.printJSON(struct {
				Path string      `json:"path"`
				Tags flac.TagSet `json:"tags"`
			}{Path: path, Tags: tags})
		},
	}
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [DIR]",
		Short: "Summarize the FLAC files of a library directory as JSON",
		Long: `Summarize the FLAC files of a library directory as JSON.

DIR defaults to the configured library directory, and to "data" if none is
configured. Files which cannot be read are listed with the status "degraded".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.conf.GetString(keyLibraryDir)
			if len(args) > 0 {
				dir = args[0]
			}
			s := library.NewScanner(library.WithLogger(a.log))
			tracks, err := s.ListTracks(dir)
			if err != nil {
				return errors.WithStack(err)
			}
			return a.printJSON(tracks)
		},
	}
}

func (a *app) musicDirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "musicdir",
		Short: "Print the music directory of the user as JSON, or null",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, ok := library.MusicDir()
			if !ok {
				return a.printJSON(nil)
			}
			return a.printJSON(dir)
		},
	}
}
