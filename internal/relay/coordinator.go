package relay

import (
	"context"
	"fmt"
)

// authorize answers connection_established: it obtains the channel
// signature for the socket and sends the subscribe frame. Every
// authorization failure is fatal for the link.
func (s *Supervisor) authorize(ctx context.Context, target Target, l *link, f Frame) error {
	var est connectionEstablished
	if err := decodeData(f.Data, &est); err != nil || est.SocketID == "" {
		s.logger.Warn("connection established without socket id", "tenant_id", target.TenantID, "error", err)
		return nil
	}
	s.setState(target.TenantID, StateAwaitingAuth)

	authCtx, cancel := context.WithTimeout(ctx, s.cfg.AuthTimeout)
	defer cancel()

	auth, err := s.auth.AuthorizeChannel(authCtx, est.SocketID, target.Channel, target.BearerToken)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: authorizing %s: %w", ErrAuthRejected, target.Channel, err)
	}

	frame, err := encodeSubscribe(target.Channel, auth)
	if err != nil {
		return fmt.Errorf("encoding subscribe: %w", err)
	}
	s.setState(target.TenantID, StateSubscribing)
	if err := l.write(frame); err != nil {
		return fmt.Errorf("sending subscribe: %w", err)
	}
	s.logger.Debug("subscribe sent", "tenant_id", target.TenantID, "channel", target.Channel, "socket_id", est.SocketID)
	return nil
}

// confirm handles subscription_succeeded: the link becomes Subscribed and
// the queued backlog is flushed before any new Publish can write.
func (s *Supervisor) confirm(target Target, l *link, hs *Handshake, f Frame) error {
	if f.Channel != "" && f.Channel != target.Channel {
		s.logger.Warn("subscription confirmed for unexpected channel", "channel", f.Channel, "want", target.Channel)
		return nil
	}

	var sendErr error
	s.sendMu.Lock()
	s.setState(target.TenantID, StateSubscribed)
	if s.cfg.OnSubscribed != nil {
		s.cfg.OnSubscribed(target.TenantID, func(frame []byte) error {
			err := l.write(frame)
			if err != nil && sendErr == nil {
				sendErr = err
			}
			return err
		})
	}
	s.sendMu.Unlock()

	if sendErr != nil {
		return fmt.Errorf("flushing queue: %w", sendErr)
	}
	s.logger.Info("subscribed to tenant channel", "tenant_id", target.TenantID, "channel", target.Channel)
	hs.complete(nil)
	return nil
}

// hubError handles pusher:error. Only an invalid-authentication code ends
// the link.
func (s *Supervisor) hubError(target Target, f Frame) error {
	var he hubError
	if err := decodeData(f.Data, &he); err != nil {
		s.logger.Warn("undecodable hub error frame", "tenant_id", target.TenantID, "error", err)
		return nil
	}
	if he.authInvalid() {
		return fmt.Errorf("%w: hub error %d: %s", ErrAuthRejected, *he.Code, he.Message)
	}

	code := any(nil)
	if he.Code != nil {
		code = *he.Code
	}
	s.logger.Warn("hub error", "tenant_id", target.TenantID, "code", code, "message", he.Message)
	return nil
}
