package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/regionsel/internal/adapters/blobstore"
	"github.com/okian/regionsel/internal/adapters/embeddings"
	"github.com/okian/regionsel/internal/domain/types"
	"github.com/smartystreets/goconvey/convey"
)

const regionMap = "filename,region\nnorth.npy,north\nsouth.npy,south\nlost.npy,east\n"

// run executes regionctl with args and returns stdout.
func run(args ...string) (string, error) {
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(bytes.NewReader(nil))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// seedStore writes a region map and two 2-D embeddings into a local store.
func seedStore(t *testing.T, root string) {
	t.Helper()
	ctx := context.Background()
	store := blobstore.NewLocalStore(root)
	north := embeddings.EncodeNPY([][]float64{{0, 0}, {1, 0}, {0, 1}}, false)
	south := embeddings.EncodeNPY([][]float64{{10, 10}, {11, 10}, {10, 11}}, false)
	for key, data := range map[string][]byte{
		"embedding_region_map.csv": []byte(regionMap),
		"embeddings/north.npy":     north,
		"embeddings/south.npy":     south,
	} {
		if err := store.Put(ctx, key, data); err != nil {
			t.Fatalf("seed %s: %v", key, err)
		}
	}
}

func TestRegionctl(t *testing.T) {
	convey.Convey("Given a local store with labeled embeddings", t, func() {
		root := t.TempDir()
		seedStore(t, root)
		t.Setenv("REGIONSEL_STORE_KIND", "local")
		t.Setenv("REGIONSEL_STORE_ROOT", root)
		t.Setenv("REGIONSEL_EXPECTED_DIM", "2")
		t.Setenv("REGIONSEL_LOG_LEVEL", "error")

		convey.Convey("When inspecting before a build", func() {
			_, err := run("inspect")

			convey.Convey("Then it should report the missing profile set", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "no profile set")
			})
		})

		convey.Convey("When building profiles", func() {
			out, err := run("build")
			convey.So(err, convey.ShouldBeNil)

			var result buildResult
			convey.So(json.Unmarshal([]byte(out), &result), convey.ShouldBeNil)

			convey.Convey("Then it should report the build", func() {
				convey.So(result.Samples, convey.ShouldEqual, 6)
				convey.So(result.Items, convey.ShouldEqual, 3)
				convey.So(result.Profile.Labels, convey.ShouldResemble, []string{"north", "south"})
				convey.So(result.Profile.Dim, convey.ShouldEqual, 2)
				convey.So(len(result.Skipped), convey.ShouldEqual, 1)
				convey.So(result.Skipped[0].Name, convey.ShouldEqual, "lost.npy")
				convey.So(result.Skipped[0].Region, convey.ShouldEqual, "east")
				convey.So(result.Skipped[0].Reason, convey.ShouldEqual, embeddings.ReasonMissing)
			})

			convey.Convey("Then the profile set should be persisted", func() {
				_, err := os.Stat(filepath.Join(root, "region_profiles.json"))
				convey.So(err, convey.ShouldBeNil)
			})

			convey.Convey("Then inspect should describe it", func() {
				out, err := run("inspect")
				convey.So(err, convey.ShouldBeNil)
				var summary types.ProfileSummary
				convey.So(json.Unmarshal([]byte(out), &summary), convey.ShouldBeNil)
				convey.So(summary.Labels, convey.ShouldResemble, []string{"north", "south"})
				convey.So(len(summary.Regions), convey.ShouldEqual, 2)
				convey.So(summary.Regions[0].Samples, convey.ShouldEqual, 3)
				convey.So(summary.Regions[0].Usable, convey.ShouldBeTrue)
			})

			convey.Convey("Then select should answer JSON queries", func() {
				queries := filepath.Join(t.TempDir(), "queries.json")
				body := `[{"id":"a","vector":[10.2,10.3]},{"id":"b","vector":[0.1,0.2]},{"id":"c","vector":[1]}]`
				convey.So(os.WriteFile(queries, []byte(body), 0o600), convey.ShouldBeNil)

				out, err := run("select", queries)
				convey.So(err, convey.ShouldBeNil)
				var resp selectResult
				convey.So(json.Unmarshal([]byte(out), &resp), convey.ShouldBeNil)
				convey.So(len(resp.Results), convey.ShouldEqual, 3)
				convey.So(resp.Results[0].Selection.Region, convey.ShouldEqual, "south")
				convey.So(resp.Results[0].Selection.Model, convey.ShouldEqual, "redrhd-south-model")
				convey.So(resp.Results[1].Selection.Region, convey.ShouldEqual, "north")
				convey.So(resp.Results[2].Error, convey.ShouldNotBeEmpty)
			})

			convey.Convey("Then select should answer npy queries", func() {
				queries := filepath.Join(t.TempDir(), "query.npy")
				data := embeddings.EncodeNPY([][]float64{{0.2, 0.1}}, true)
				convey.So(os.WriteFile(queries, data, 0o600), convey.ShouldBeNil)

				out, err := run("select", queries)
				convey.So(err, convey.ShouldBeNil)
				var resp selectResult
				convey.So(json.Unmarshal([]byte(out), &resp), convey.ShouldBeNil)
				convey.So(len(resp.Results), convey.ShouldEqual, 1)
				convey.So(resp.Results[0].ID, convey.ShouldEqual, "0")
				convey.So(resp.Results[0].Selection.Region, convey.ShouldEqual, "north")
			})

			convey.Convey("Then the output flag should write a file", func() {
				path := filepath.Join(t.TempDir(), "out", "summary.json")
				out, err := run("inspect", "-o", path)
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldBeEmpty)
				data, err := os.ReadFile(path)
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(data), convey.ShouldContainSubstring, `"north"`)
			})
		})

		convey.Convey("When building into a compressed msgpack key", func() {
			_, err := run("build", "--profile-key", "profiles/region_profiles.msgpack.zst")
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the same key should inspect cleanly", func() {
				out, err := run("inspect", "--profile-key", "profiles/region_profiles.msgpack.zst")
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, `"south"`)
			})
		})

		convey.Convey("When mirroring embeddings to another directory", func() {
			dst := t.TempDir()
			out, err := run("mirror", "--from", "embeddings/", "--to", "copy/", "--dst-kind", "local", "--dst-root", dst)
			convey.So(err, convey.ShouldBeNil)

			var result mirrorResult
			convey.So(json.Unmarshal([]byte(out), &result), convey.ShouldBeNil)

			convey.Convey("Then every object should be copied", func() {
				convey.So(result.Copied, convey.ShouldEqual, 2)
				convey.So(result.Failed, convey.ShouldEqual, 0)
				_, err := os.Stat(filepath.Join(dst, "copy", "north.npy"))
				convey.So(err, convey.ShouldBeNil)
				_, err = os.Stat(filepath.Join(dst, "copy", "south.npy"))
				convey.So(err, convey.ShouldBeNil)
			})
		})

		convey.Convey("When mirroring with an include filter", func() {
			dst := t.TempDir()
			out, err := run("mirror", "--from", "embeddings/", "--include", "north", "--dst-root", dst)
			convey.So(err, convey.ShouldBeNil)

			var result mirrorResult
			convey.So(json.Unmarshal([]byte(out), &result), convey.ShouldBeNil)

			convey.Convey("Then only matching keys should be copied", func() {
				convey.So(result.Copied, convey.ShouldEqual, 1)
				convey.So(result.Skipped, convey.ShouldEqual, 1)
				_, err := os.Stat(filepath.Join(dst, "embeddings", "north.npy"))
				convey.So(err, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the destination store is unknown", func() {
			_, err := run("mirror", "--from", "embeddings/", "--dst-kind", "ftp")

			convey.Convey("Then it should fail", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "destination store")
			})
		})
	})
}

func TestParseQueries(t *testing.T) {
	convey.Convey("Given query files", t, func() {
		convey.Convey("When the JSON is a single object", func() {
			queries, err := parseQueries("q.json", []byte(` {"vector":[1,2]}`), 2)

			convey.Convey("Then one query should be returned", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(queries, convey.ShouldResemble, []types.BatchQuery{{Vector: []float64{1, 2}}})
			})
		})

		convey.Convey("When the JSON object has no vector", func() {
			_, err := parseQueries("q.json", []byte(`{"id":"x"}`), 2)

			convey.Convey("Then it should fail", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When the JSON is malformed", func() {
			_, err := parseQueries("q.json", []byte(`[{"vector":`), 2)

			convey.Convey("Then it should fail", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When an npy row has the wrong width", func() {
			_, err := parseQueries("q.NPY", embeddings.EncodeNPY([][]float64{{1, 2, 3}}, false), 2)

			convey.Convey("Then it should fail with a shape error", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}
