package main

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/rollcall/internal/adapters/mq/queue"
	"github.com/okian/rollcall/internal/adapters/mq/worker"
	"github.com/okian/rollcall/internal/adapters/repository"
	"github.com/okian/rollcall/internal/config"
	"github.com/okian/rollcall/internal/domain/extract"
	"github.com/okian/rollcall/pkg/logger"
)

type wholeFrame struct{}

func (wholeFrame) Detect(_ context.Context, gray *image.Gray) ([]extract.Rect, error) {
	b := gray.Bounds()
	return []extract.Rect{{X: b.Min.X, Y: b.Min.Y, W: b.Dx(), H: b.Dy()}}, nil
}

func useDetector(t *testing.T, d extract.Detector) {
	prev := newDetector
	newDetector = func(context.Context, *config.Config, logger.Logger) extract.Detector { return d }
	t.Cleanup(func() { newDetector = prev })
}

// fileEnv points the store and archive at a temp dir and returns it.
func fileEnv(t *testing.T) string {
	dir := t.TempDir()
	t.Setenv("ROLLCALL_STORE_BACKEND", "file")
	t.Setenv("ROLLCALL_DATA_DIR", dir)
	t.Setenv("ROLLCALL_UPLOADS_DIR", filepath.Join(dir, "uploads"))
	t.Setenv("ROLLCALL_LOG_LEVEL", "error")
	return dir
}

func writeFace(t *testing.T, path string, seed int64) {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic test data
	img := image.NewGray(image.Rect(0, 0, 100, 100))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
}

func run(args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	convey.Convey("Given the version command", t, func() {
		out, err := run("version")

		convey.Convey("Then it prints build metadata", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, "rollcall dev")
			convey.So(out, convey.ShouldContainSubstring, "Commit: unknown")
		})
	})
}

func TestEnrollAndRecognize(t *testing.T) {
	useDetector(t, wholeFrame{})

	convey.Convey("Given a file-backed gallery", t, func() {
		dir := fileEnv(t)
		asha := filepath.Join(dir, "asha.png")
		stranger := filepath.Join(dir, "stranger.png")
		writeFace(t, asha, 1)
		writeFace(t, stranger, 2)

		convey.Convey("When enrolling a face", func() {
			out, err := run("enroll", "--roll", "101", "--name", "Asha", "--image", asha)
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, "registered")

			convey.Convey("Then the identity and reference image are stored", func() {
				store, err := repository.NewFileStore(dir)
				convey.So(err, convey.ShouldBeNil)
				id, err := store.FindByRoll(context.Background(), "101")
				convey.So(err, convey.ShouldBeNil)
				convey.So(id.Name, convey.ShouldEqual, "Asha")
				_, err = os.Stat(filepath.Join(dir, "uploads", "101.jpg"))
				convey.So(err, convey.ShouldBeNil)
			})

			convey.Convey("And recognizing frames reports each outcome in order", func() {
				out, err := run("recognize", "--workers", "2", asha, stranger)
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "matched")
				convey.So(out, convey.ShouldContainSubstring, "not_recognized")
				convey.So(strings.Index(out, "asha.png"), convey.ShouldBeLessThan, strings.Index(out, "stranger.png"))

				store, err := repository.NewFileStore(dir)
				convey.So(err, convey.ShouldBeNil)
				gallery, err := store.ListIdentities(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(gallery), convey.ShouldEqual, 1)
			})
		})
	})
}

func TestEnrollDirectory(t *testing.T) {
	dir := fileEnv(t)
	useDetector(t, wholeFrame{})
	photos := filepath.Join(dir, "photos")
	if err := os.Mkdir(photos, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFace(t, filepath.Join(photos, "101_Asha_Rao.png"), 1)
	writeFace(t, filepath.Join(photos, "202_Ben.png"), 2)
	writeFace(t, filepath.Join(photos, "303_Twin.png"), 1)
	if err := os.WriteFile(filepath.Join(photos, "notes.txt"), []byte("skip me"), 0o600); err != nil {
		t.Fatal(err)
	}

	convey.Convey("Given a directory of named photos", t, func() {
		out, err := run("enroll", "--dir", photos, "--workers", "1")

		convey.Convey("Then each distinct face is enrolled and the repeat is refused", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, "duplicate_face")

			store, err := repository.NewFileStore(dir)
			convey.So(err, convey.ShouldBeNil)
			gallery, err := store.ListIdentities(context.Background())
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(gallery), convey.ShouldEqual, 2)

			id, err := store.FindByRoll(context.Background(), "101")
			convey.So(err, convey.ShouldBeNil)
			convey.So(id.Name, convey.ShouldEqual, "Asha Rao")
		})
	})
}

func TestEnrollWithoutDetector(t *testing.T) {
	dir := fileEnv(t)
	useDetector(t, nil)
	img := filepath.Join(dir, "asha.png")
	writeFace(t, img, 1)

	convey.Convey("Given no face detector", t, func() {
		out, err := run("enroll", "--roll", "101", "--name", "Asha", "--image", img)

		convey.Convey("Then enrollment reports no face", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, "no_face_detected")
		})
	})
}

func TestCommandErrors(t *testing.T) {
	fileEnv(t)

	convey.Convey("Given invalid invocations", t, func() {
		convey.Convey("Then enroll without an image fails", func() {
			_, err := run("enroll", "--roll", "101")
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("Then enroll with both --image and --dir fails", func() {
			_, err := run("enroll", "--image", "a.png", "--dir", ".")
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("Then recognize without images fails", func() {
			_, err := run("recognize")
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("Then an unreadable image fails", func() {
			_, err := run("recognize", "--image", "/nonexistent/frame.png")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestParseEnrollName(t *testing.T) {
	convey.Convey("Given enrollment file names", t, func() {
		cases := []struct {
			file, roll, name string
			ok               bool
		}{
			{"101_Asha.jpg", "101", "Asha", true},
			{"101_Asha_Rao.png", "101", "Asha Rao", true},
			{"CS-7_Li.webp", "CS-7", "Li", true},
			{"101.jpg", "", "", false},
			{"_Asha.jpg", "", "", false},
			{"101_.jpg", "", "", false},
		}
		for _, c := range cases {
			roll, name, ok := parseEnrollName(c.file)
			convey.So(ok, convey.ShouldEqual, c.ok)
			convey.So(roll, convey.ShouldEqual, c.roll)
			convey.So(name, convey.ShouldEqual, c.name)
		}
	})
}

func TestBuildDetector(t *testing.T) {
	convey.Convey("Given detector configuration", t, func() {
		ctx := context.Background()
		log := logger.NewNop()

		convey.Convey("Then an empty cascade path disables detection", func() {
			cfg := config.New()
			convey.So(buildDetector(ctx, cfg, log), convey.ShouldBeNil)
		})

		convey.Convey("Then a missing cascade file disables detection", func() {
			cfg := config.New()
			cfg.CascadePath = filepath.Join(t.TempDir(), "facefinder")
			convey.So(buildDetector(ctx, cfg, log), convey.ShouldBeNil)
		})
	})
}

func TestRunBatchCancelled(t *testing.T) {
	convey.Convey("Given a batch whose handler blocks until cancellation", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		started := make(chan struct{}, 3)
		h := worker.HandlerFunc(func(ctx context.Context, _ queue.Job) (any, error) {
			started <- struct{}{}
			<-ctx.Done()
			return nil, ctx.Err()
		})
		jobs := []queue.Job{{Seq: 0, Name: "a"}, {Seq: 1, Name: "b"}, {Seq: 2, Name: "c"}}
		go func() {
			<-started
			cancel()
		}()

		convey.Convey("Then the batch stops and reports the cancellation", func() {
			_, err := runBatch(ctx, jobs, 1, logger.NewNop(), h)
			convey.So(errors.Is(err, context.Canceled), convey.ShouldBeTrue)
		})
	})
}

func TestEnvFilePrecedence(t *testing.T) {
	convey.Convey("Given a .env file, a YAML config and one real variable", t, func() {
		dir := t.TempDir()
		convey.So(os.WriteFile(filepath.Join(dir, ".env"),
			[]byte("ROLLCALL_MATCH_POLICY=best\nROLLCALL_ADDR=:7000\n"), 0o600), convey.ShouldBeNil)
		yamlPath := filepath.Join(dir, "rollcall.yaml")
		convey.So(os.WriteFile(yamlPath,
			[]byte("match_policy: first\naddr: \":6000\"\nrecognize_threshold: 0.65\n"), 0o600), convey.ShouldBeNil)

		wd, wdErr := os.Getwd()
		convey.So(wdErr, convey.ShouldBeNil)
		convey.So(os.Chdir(dir), convey.ShouldBeNil)
		t.Cleanup(func() { _ = os.Chdir(wd) })
		t.Setenv("ROLLCALL_CONFIG", yamlPath)
		t.Setenv("ROLLCALL_ADDR", ":9000")
		t.Cleanup(func() { _ = os.Unsetenv("ROLLCALL_MATCH_POLICY") })

		st := &cliState{}
		root := buildRootCmd(st)
		root.SetContext(context.Background())
		err := root.PersistentPreRunE(root, nil)

		convey.Convey("Then .env beats YAML and the real environment beats .env", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(st.cfg.MatchPolicy, convey.ShouldEqual, "best")
			convey.So(st.cfg.Addr, convey.ShouldEqual, ":9000")
			convey.So(st.cfg.RecognizeThreshold, convey.ShouldEqual, 0.65)
		})
	})
}
