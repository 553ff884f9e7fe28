package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/pulsedaw/pulse/audio"
)

func main() {
	var (
		backend = flag.String("backend", "portaudio", "audio backend: portaudio or oto")
		kit     = flag.String("kit", "", "sample directory loaded into the default sampler")
		tempo   = flag.Float64("bpm", 120, "initial tempo")
		midiIn  = flag.Bool("midi", false, "route the first MIDI input port to the default sampler")
		script  = flag.String("run", "", "command script to run before the prompt")
		render  = flag.String("render", "", "render to this WAV file instead of playing live")
		bars    = flag.Int("bars", 4, "number of bars to render with -render")
	)
	flag.Parse()
	log.SetFlags(0)

	env, err := newEnv(*tempo)
	if err != nil {
		log.Fatal(err)
	}
	defer env.dispose()

	if *kit != "" {
		n, err := env.loadKit(env.device("sampler"), *kit)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("loaded %d samples from %s", n, *kit)
	}

	var commands []string
	if *script != "" {
		commands, err = readScript(*script)
		if err != nil {
			log.Fatal(err)
		}
	}

	if *render != "" {
		for _, line := range commands {
			if _, err := env.eval(line); err != nil {
				log.Fatal(err)
			}
		}
		if err := renderFile(env, *render, *bars); err != nil {
			log.Fatal(err)
		}
		return
	}

	switch *backend {
	case "portaudio":
		env.out, err = audio.NewSink(env.transport)
	case "oto":
		env.out, err = audio.NewOtoSink(env.transport)
	default:
		log.Fatalf("unknown backend: %s", *backend)
	}
	if err != nil {
		log.Fatal(err)
	}
	env.out.AddSources(env.sources()...)
	if err := env.out.Start(); err != nil {
		log.Fatal(err)
	}
	defer env.out.Stop()

	for _, line := range commands {
		if _, err := env.eval(line); err != nil {
			log.Fatal(err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	if *midiIn {
		g.Go(func() error {
			return listenMIDI(ctx, env.device("sampler"), env.transport)
		})
	}
	g.Go(func() error {
		defer stop()
		return repl(env)
	})

	if err := g.Wait(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func readScript(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}
