package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lazyops/lazyops/pkg/api"
	"go.uber.org/zap"
)

// NewApplicationKey is the slot a create holds while its form is open. Only
// one application can be drafted at a time.
var NewApplicationKey = AppKey(0)

const actionCreate = "create"

type formField struct {
	label string
	get   func(api.ApplicationInput) string
	set   func(*api.ApplicationInput, string) error
}

var applicationForm = []formField{
	{
		label: "Name",
		get:   func(in api.ApplicationInput) string { return in.Name },
		set: func(in *api.ApplicationInput, v string) error {
			if v == "" {
				return errors.New("required")
			}
			if len(v) > 255 {
				return errors.New("at most 255 characters")
			}
			in.Name = v
			return nil
		},
	},
	{
		label: "Git HTTPS URL",
		get:   func(in api.ApplicationInput) string { return in.GitProjectHTTPSURL },
		set: func(in *api.ApplicationInput, v string) error {
			if !strings.HasPrefix(v, "https://") {
				return errors.New("must start with https://")
			}
			in.GitProjectHTTPSURL = v
			return nil
		},
	},
	{
		label: "Git SSH URL",
		get:   func(in api.ApplicationInput) string { return in.GitProjectSSHURL },
		set: func(in *api.ApplicationInput, v string) error {
			in.GitProjectSSHURL = v
			return nil
		},
	},
	{
		label: "Port",
		get: func(in api.ApplicationInput) string {
			if in.Port == 0 {
				return ""
			}
			return strconv.Itoa(in.Port)
		},
		set: func(in *api.ApplicationInput, v string) error {
			port, err := strconv.Atoi(v)
			if err != nil || port < 1 || port > 65535 {
				return errors.New("1-65535")
			}
			in.Port = port
			return nil
		},
	},
	{
		label: "Description",
		get:   func(in api.ApplicationInput) string { return in.Description },
		set: func(in *api.ApplicationInput, v string) error {
			in.Description = v
			return nil
		},
	},
}

// fillApplication walks the form through the gate's text step. An invalid
// answer asks the same field again; closing any step cancels the form.
func (o *Orchestrator) fillApplication(ctx context.Context, title string, in api.ApplicationInput) (api.ApplicationInput, error) {
	for _, f := range applicationForm {
		prompt := fmt.Sprintf("%s: %s", title, f.label)
		value := f.get(in)
		for {
			text, ok := o.gate.EnterText(ctx, prompt, value)
			if !ok {
				return in, ErrCancelled
			}
			value = strings.TrimSpace(text)
			err := f.set(&in, value)
			if err == nil {
				break
			}
			prompt = fmt.Sprintf("%s: %s (%v)", title, f.label, err)
		}
	}
	return in, nil
}

// CreateApplication collects a new application through the gate and
// registers it.
func (o *Orchestrator) CreateApplication(ctx context.Context) error {
	ctx, log := o.operation(ctx, actionCreate)
	return o.settle(actionCreate, log, o.createApplication(ctx, log))
}

func (o *Orchestrator) createApplication(ctx context.Context, log *zap.Logger) error {
	c, err := o.locks.claim(NewApplicationKey, ActionEdit)
	if err != nil {
		return err
	}
	defer c.settle()
	in, err := o.fillApplication(ctx, "New application", api.ApplicationInput{})
	if err != nil {
		return err
	}
	if err := c.acquire(); err != nil {
		return err
	}
	app, err := o.backend.CreateApplication(ctx, in)
	c.settle()
	if err != nil {
		return fmt.Errorf("create application %q: %w", in.Name, err)
	}
	log.Info("application created", zap.Int64("application_id", app.ID), zap.String("name", in.Name))
	if err := o.reload(ctx); err != nil {
		log.Warn("reload after create", zap.Error(err))
	}
	return nil
}

// EditApplication walks the application's fields through the gate and
// saves them. An unchanged form is a cancellation.
func (o *Orchestrator) EditApplication(ctx context.Context, appID int64) error {
	ctx, log := o.operation(ctx, "edit_application", zap.Int64("application_id", appID))
	return o.settle(string(ActionEdit), log, o.editApplication(ctx, log, appID))
}

func (o *Orchestrator) editApplication(ctx context.Context, log *zap.Logger, appID int64) error {
	app, ok := o.application(appID)
	if !ok {
		return fmt.Errorf("application %d: %w", appID, ErrNotFound)
	}
	c, err := o.locks.claim(AppKey(appID), ActionEdit)
	if err != nil {
		return err
	}
	defer c.settle()
	before := app.Input()
	in, err := o.fillApplication(ctx, "Edit "+app.Name, before)
	if err != nil {
		return err
	}
	if in == before {
		return ErrCancelled
	}
	if err := c.acquire(); err != nil {
		return err
	}
	_, err = o.backend.UpdateApplication(ctx, appID, in)
	c.settle()
	if err != nil {
		return fmt.Errorf("update application %d: %w", appID, err)
	}
	if err := o.reload(ctx); err != nil {
		log.Warn("reload after edit", zap.Error(err))
	}
	return nil
}
