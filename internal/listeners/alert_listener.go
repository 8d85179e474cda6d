package listeners

import (
	"context"
	"fmt"
	"time"

	"SafeStack/internal/models"
	"SafeStack/pkg/logger"
	"SafeStack/pkg/util"

	"go.uber.org/zap"
)

type StreamPublisher interface {
	PublishJSON(name string, v any, groups ...string) error
}

type AlertPublisher interface {
	PublishAlert(alert *models.AlertView) error
}

type AlertIndexer interface {
	Index(ctx context.Context, alert *models.AlertView) error
	Delete(ctx context.Context, id uint) error
}

type AlertCounter interface {
	AlertCreated(level int)
}

// AlertFanout 新告警的下游，nil 字段跳过
type AlertFanout struct {
	Stream  StreamPublisher
	MQTT    AlertPublisher
	Index   AlertIndexer
	Metrics AlertCounter
}

// StreamGroups are the SSE groups an alert is delivered to besides the catch-all.
func StreamGroups(alert *models.AlertView) []string {
	return []string{
		fmt.Sprintf("level:%d", alert.PolicyLevel),
		fmt.Sprintf("policy:%d", alert.PolicyID),
	}
}

func InitAlertListeners(sig *util.Signals, fan AlertFanout) {
	// register alert created listener - SSE, MQTT, search index, metrics
	sig.Connect(models.SigAlertCreated, func(sender any, params ...any) {
		alert, ok := sender.(*models.AlertView)
		if !ok || alert == nil {
			return
		}

		if fan.Metrics != nil {
			fan.Metrics.AlertCreated(alert.PolicyLevel)
		}
		if fan.Stream != nil {
			if err := fan.Stream.PublishJSON("alert", alert, StreamGroups(alert)...); err != nil {
				logger.Warn("stream alert failed", zap.Uint("alert_id", alert.ID), zap.Error(err))
			}
		}
		if fan.Index != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := fan.Index.Index(ctx, alert); err != nil {
				logger.Warn("index alert failed", zap.Uint("alert_id", alert.ID), zap.Error(err))
			}
			cancel()
		}
		if fan.MQTT != nil {
			// broker 可能很慢，不阻塞流水线
			go func() {
				if err := fan.MQTT.PublishAlert(alert); err != nil {
					logger.Warn("mqtt publish failed", zap.Uint("alert_id", alert.ID), zap.Error(err))
				}
			}()
		}
	})

	sig.Connect(models.SigAlertDeleted, func(sender any, params ...any) {
		id, ok := sender.(uint)
		if !ok || fan.Index == nil {
			return
		}
		if err := fan.Index.Delete(context.Background(), id); err != nil {
			logger.Warn("unindex alert failed", zap.Uint("alert_id", id), zap.Error(err))
		}
	})
}
