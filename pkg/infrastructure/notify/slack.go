package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/vsinha/csatrack/pkg/application/dto"
)

// SlackNotifier posts batch run summaries to a channel
type SlackNotifier struct {
	api       *slack.Client
	channelID string
	logger    *zap.Logger
}

// NewSlackNotifier creates a notifier. Pass slack.OptionAPIURL to target a test server.
func NewSlackNotifier(token, channelID string, logger *zap.Logger, opts ...slack.Option) (*SlackNotifier, error) {
	if token == "" || channelID == "" {
		return nil, fmt.Errorf("slack token and channel id are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlackNotifier{
		api:       slack.New(token, opts...),
		channelID: channelID,
		logger:    logger,
	}, nil
}

// NotifyRun posts summary as a header plus one section per clinic
func (n *SlackNotifier) NotifyRun(ctx context.Context, summary dto.RunSummary) error {
	_, ts, err := n.api.PostMessageContext(ctx, n.channelID,
		slack.MsgOptionText(SummaryText(summary), false),
		slack.MsgOptionBlocks(summaryBlocks(summary)...),
	)
	if err != nil {
		return fmt.Errorf("posting run summary: %w", err)
	}
	n.logger.Info("posted run summary", zap.String("channel", n.channelID), zap.String("ts", ts))
	return nil
}

// SummaryText is the plain-text fallback of a run summary
func SummaryText(summary dto.RunSummary) string {
	took := summary.FinishedAt.Sub(summary.StartedAt).Round(time.Second)
	return fmt.Sprintf("CSA reconciliation: %d clinics, %d failed (%s)", len(summary.Clinics), summary.Failed(), took)
}

func summaryBlocks(summary dto.RunSummary) []slack.Block {
	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, "CSA reconciliation run", false, false)),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, SummaryText(summary), false, false), nil, nil),
		slack.NewDividerBlock(),
	}

	for _, c := range summary.Clinics {
		var line strings.Builder
		fmt.Fprintf(&line, "*%s*: ", c.Clinic)
		if c.Error != "" {
			fmt.Fprintf(&line, ":x: %s", c.Error)
		} else {
			fmt.Fprintf(&line, ":white_check_mark: %d in field, %d global orphans", c.InField, c.GlobalOrphans)
		}
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, line.String(), false, false),
			nil,
			nil,
		))
	}
	return blocks
}
