package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// StorageFields 描述单个存储后端，供同步/安装日志复用。
func StorageFields(action, location, storageType string) logrus.Fields {
	return logrus.Fields{
		"action":       action,
		"storage":      location,
		"storage_type": storageType,
	}
}

// ResourceFields 提供 storage/resource/命中状态字段，供资源查询日志复用。
func ResourceFields(storage, resource string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"storage":   storage,
		"resource":  resource,
		"cache_hit": cacheHit,
	}
}
