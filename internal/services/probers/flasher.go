package probers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"iaptool/internal/flash"
	"iaptool/internal/logging"
	"iaptool/internal/probe"
	"iaptool/internal/services"
)

// Attach connects to chipType through the session's probe by issuing a
// target reset, which fails when the chip is absent, unpowered or of a
// different type.
func (c *Client) Attach(ctx context.Context, s probe.Session, chipType string, perms flash.Permissions) (probe.Session, error) {
	sess, err := c.own(s)
	if err != nil {
		return nil, err
	}
	chipType = strings.TrimSpace(chipType)
	if chipType == "" {
		return nil, services.Wrap(services.ErrValidation, toolName, "attach", "chip type required", nil)
	}

	args := append([]string{"reset"}, c.targetArgs(sess.desc, chipType)...)
	if _, err := c.run(ctx, "attach", args); err != nil {
		return nil, err
	}
	c.logger.Debug("target attached",
		logging.String(logging.FieldProbe, sess.desc.Selector()),
		logging.String(logging.FieldChipType, chipType),
	)
	return &session{client: c, desc: sess.desc, lease: sess.lease, chip: chipType, perms: perms}, nil
}

// Download writes the image at path to the attached target.
func (c *Client) Download(ctx context.Context, s probe.Session, path string, format flash.FormatKind, opts flash.DownloadOptions) error {
	sess, err := c.own(s)
	if err != nil {
		return err
	}
	if !sess.attached() {
		return services.Wrap(services.ErrValidation, toolName, "download", "session is not attached to a target", nil)
	}
	args, err := c.downloadArgs(sess, path, format, opts)
	if err != nil {
		return err
	}
	_, err = c.run(ctx, "download", args)
	return err
}

func (c *Client) own(s probe.Session) (*session, error) {
	sess, ok := s.(*session)
	if !ok || sess == nil || sess.client != c {
		return nil, errors.New("session was not opened by this probe-rs client")
	}
	return sess, nil
}

func (c *Client) targetArgs(desc probe.Descriptor, chipType string) []string {
	args := []string{"--chip", chipType, "--probe", desc.Selector()}
	if c.protocol != "" {
		args = append(args, "--protocol", c.protocol)
	}
	if c.speedKHz > 0 {
		args = append(args, "--speed", strconv.Itoa(c.speedKHz))
	}
	if c.connectUnderReset {
		args = append(args, "--connect-under-reset")
	}
	return args
}

func (c *Client) downloadArgs(sess *session, path string, format flash.FormatKind, opts flash.DownloadOptions) ([]string, error) {
	args := append([]string{"download"}, c.targetArgs(sess.desc, sess.chip)...)
	if sess.perms.AllowEraseAll {
		args = append(args, "--allow-erase-all")
	}
	switch format {
	case flash.FormatELF, flash.FormatHex:
		args = append(args, "--binary-format", string(format))
	case flash.FormatBin:
		if opts.BaseAddress == nil {
			return nil, flash.ErrBaseAddressRequired
		}
		args = append(args, "--binary-format", "bin", "--base-address", fmt.Sprintf("0x%x", *opts.BaseAddress))
	default:
		return nil, fmt.Errorf("%w: %q", flash.ErrUnknownFormat, format)
	}
	args = append(args, "--disable-progressbars", path)
	return args, nil
}
