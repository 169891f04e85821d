// Package publish uploads a finished render artifact to a storage provider.
package publish

import (
	"context"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"galarender/internal/pkg/errors"
	"galarender/internal/pkg/logger"
	"galarender/internal/ports"
	"galarender/internal/worker/dispatch"
)

// FramePattern selects the files uploaded from a frame-directory artifact.
const FramePattern = "frame_*"

// Object is one uploaded file.
type Object struct {
	Name        string
	ObjectKey   string
	ContentType string
	Size        int64
}

// Publication lists what a Publish call stored.
type Publication struct {
	Provider string
	Objects  []Object
}

type Publisher struct {
	sp     ports.StorageProvider
	prefix string
	log    *logger.Logger
}

func New(sp ports.StorageProvider, prefix string, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Publisher{
		sp:     sp,
		prefix: strings.Trim(prefix, "/"),
		log:    log.WithComponent("publish"),
	}
}

// Publish uploads the video file of a video artifact, or every frame file of
// a directory artifact, under <prefix>/<jobID>/. On failure the objects
// already uploaded by this call are deleted.
func (p *Publisher) Publish(ctx context.Context, jobID string, res *dispatch.Result) (*Publication, error) {
	log := p.log.FromContext(ctx)

	files, err := artifactFiles(res)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodePublish, "publish.list", "cannot list artifact files").
			WithField("artifact", res.Artifact)
	}

	pub := &Publication{Provider: p.sp.Provider()}
	for _, local := range files {
		obj, err := p.upload(ctx, jobID, local)
		if err != nil {
			p.rollback(ctx, pub)
			return nil, errors.WrapWithCode(err, errors.CodePublish, "publish.upload", "upload failed").
				WithField("file", local)
		}
		pub.Objects = append(pub.Objects, obj)
	}

	log.Info("artifact published",
		"provider", pub.Provider,
		"objects", len(pub.Objects),
	)
	return pub, nil
}

// ObjectKey returns the storage key for a file of the job.
func (p *Publisher) ObjectKey(jobID, name string) string {
	if p.prefix == "" {
		return path.Join(jobID, name)
	}
	return path.Join(p.prefix, jobID, name)
}

func (p *Publisher) upload(ctx context.Context, jobID, local string) (Object, error) {
	f, err := os.Open(local)
	if err != nil {
		return Object{}, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return Object{}, err
	}

	name := filepath.Base(local)
	contentType := MimeFromExt(filepath.Ext(name))

	out, err := p.sp.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   p.ObjectKey(jobID, name),
		ContentType: contentType,
		Reader:      f,
		Size:        st.Size(),
	})
	if err != nil {
		return Object{}, err
	}

	return Object{
		Name:        name,
		ObjectKey:   out.ObjectKey,
		ContentType: contentType,
		Size:        out.Size,
	}, nil
}

func (p *Publisher) rollback(ctx context.Context, pub *Publication) {
	for _, obj := range pub.Objects {
		if err := p.sp.DeleteObject(ctx, obj.ObjectKey); err != nil {
			p.log.Warn("rollback delete failed", "object_key", obj.ObjectKey, "error", err.Error())
		}
	}
}

func artifactFiles(res *dispatch.Result) ([]string, error) {
	if res.Video {
		return []string{res.Artifact}, nil
	}

	entries, err := os.ReadDir(res.Artifact)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ok, _ := filepath.Match(FramePattern, e.Name()); ok {
			files = append(files, filepath.Join(res.Artifact, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// MimeFromExt returns the content type for a render output extension.
func MimeFromExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".exr":
		return "image/x-exr"
	case ".mp4":
		return "video/mp4"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
