package model

type UserRole string

const (
	UserRoleParent UserRole = "parent"
	UserRoleChild  UserRole = "child"
)

type ActivityType string

const (
	ActivityAppOpened         ActivityType = "app_opened"
	ActivityAppActive         ActivityType = "app_active"
	ActivityAppBackground     ActivityType = "app_background"
	ActivityAppShutdown       ActivityType = "app_shutdown"
	ActivityHeartbeat         ActivityType = "heartbeat"
	ActivityMonitoringStarted ActivityType = "monitoring_started"
	ActivityMonitoringStopped ActivityType = "monitoring_stopped"
)

func (a ActivityType) Valid() bool {
	switch a {
	case ActivityAppOpened, ActivityAppActive, ActivityAppBackground,
		ActivityAppShutdown, ActivityHeartbeat,
		ActivityMonitoringStarted, ActivityMonitoringStopped:
		return true
	}
	return false
}

type DetectionResolution string

const (
	DetectionMonitored DetectionResolution = "monitored"
	DetectionIgnored   DetectionResolution = "ignored"
)

type NotificationType string

const (
	NotificationMissedHeartbeat NotificationType = "missed_heartbeat"
	NotificationChildInactive   NotificationType = "child_inactive"
	NotificationLimitExceeded   NotificationType = "limit_exceeded"
	NotificationNewAppDetected  NotificationType = "new_app_detected"
	NotificationDeviceUnlinked  NotificationType = "device_unlinked"
)
