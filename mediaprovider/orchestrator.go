package mediaprovider

import (
	"context"

	"github.com/ppsai/chatgate/directive"
	"go.uber.org/zap"
)

// Attachment is the normalized outcome of resolving one directive. At most
// one of ImageURL/VideoURL is set; a pending video carries the operation
// handle instead of a URL.
type Attachment struct {
	ImageURL string
	VideoURL string

	Pending     bool
	OpName      string
	PollAfterMS int
}

// Orchestrator resolves extracted directives against the media provider.
// A (nil, nil) result means the directive could not be executed and the reply
// should go out scrubbed with no attachment; resolution failures never abort
// the chat reply.
type Orchestrator struct {
	client *Client
	logger *zap.Logger
}

func NewOrchestrator(client *Client, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{client: client, logger: logger.Named("mediaorchestrator")}
}

// Resolve executes a directive. Edit directives prefer inline bytes over a
// remote source; a remote-only source is fetched first and converted.
func (o *Orchestrator) Resolve(ctx context.Context, d *directive.Directive) (*Attachment, error) {
	if d == nil {
		return nil, nil
	}

	switch d.Kind {
	case directive.KindEdit:
		return o.resolveEdit(ctx, d)
	case directive.KindImage:
		imageURL, err := o.client.GenerateImage(ctx, d.Prompt)
		if err != nil {
			return nil, err
		}
		return &Attachment{ImageURL: imageURL}, nil
	case directive.KindVideo:
		opName, err := o.client.StartVideo(ctx, d.Prompt)
		if err != nil {
			return nil, err
		}
		return &Attachment{Pending: true, OpName: opName, PollAfterMS: PollAfterStartMS}, nil
	}
	return nil, nil
}

func (o *Orchestrator) resolveEdit(ctx context.Context, d *directive.Directive) (*Attachment, error) {
	source := d.SourceBase64
	if source == "" && d.SourceURL != "" {
		fetched, err := o.client.FetchImageAsDataURL(ctx, d.SourceURL)
		if err != nil {
			// No usable source; the reply still goes out, scrub-only.
			o.logger.Warn("Edit source fetch failed", zap.String("url", d.SourceURL), zap.Error(err))
			return nil, nil
		}
		source = fetched
	}
	if source == "" {
		o.logger.Debug("Edit directive without an image source, scrub-only")
		return nil, nil
	}

	imageURL, err := o.client.EditImage(ctx, d.Prompt, source)
	if err != nil {
		return nil, err
	}
	return &Attachment{ImageURL: imageURL}, nil
}
