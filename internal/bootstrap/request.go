package bootstrap

import (
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-lambda-go/cfn"

	"github.com/kiquetal/ultimate-aws-data-engineering-book/internal/config"
)

// EventType is the custom resource lifecycle event that triggered the
// invocation.
type EventType int

const (
	EventCreate EventType = iota + 1
	EventUpdate
	EventDelete
)

func (t EventType) String() string {
	switch t {
	case EventCreate:
		return "Create"
	case EventUpdate:
		return "Update"
	case EventDelete:
		return "Delete"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// ParseEventType accepts the CloudFormation request types, case-insensitively.
func ParseEventType(s string) (EventType, error) {
	switch strings.ToLower(s) {
	case "create":
		return EventCreate, nil
	case "update":
		return EventUpdate, nil
	case "delete":
		return EventDelete, nil
	default:
		return 0, fmt.Errorf("unknown lifecycle event %q", s)
	}
}

// Resource property keys carried by the Custom::RedshiftSchema resource.
const (
	PropWorkgroupName  = "workgroupName"
	PropDatabaseName   = "databaseName"
	PropAdminSecretARN = "adminSecretArn"
	PropBucketName     = "s3BucketName"
	PropKeyPrefix      = "s3KeyPrefix"
	PropSQLFileName    = "sqlFileName"
	PropSQLHash        = "sqlHash"
)

// Request is one bootstrap invocation.
type Request struct {
	Event          EventType
	WorkgroupName  string
	DatabaseName   string
	AdminSecretARN string
	BucketName     string
	KeyPrefix      string
	SQLFileName    string

	// RequestID identifies the lifecycle event; a retried delivery of the
	// same event carries the same id.
	RequestID          string
	PhysicalResourceID string
	SQLHash            string
}

// ObjectKey is the S3 key of the SQL script.
func (r Request) ObjectKey() string {
	prefix := strings.Trim(r.KeyPrefix, "/")
	if prefix == "" {
		return r.SQLFileName
	}
	return path.Join(prefix, r.SQLFileName)
}

// Validate checks that a non-delete request names everything the handler
// needs.
func (r Request) Validate() error {
	switch r.Event {
	case EventCreate, EventUpdate:
	case EventDelete:
		return nil
	default:
		return newError(KindInvalidRequest, nil, "unsupported lifecycle event %s", r.Event)
	}

	var missing []string
	for _, f := range []struct {
		name, value string
	}{
		{PropWorkgroupName, r.WorkgroupName},
		{PropDatabaseName, r.DatabaseName},
		{PropAdminSecretARN, r.AdminSecretARN},
		{PropBucketName, r.BucketName},
		{PropSQLFileName, r.SQLFileName},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return newError(KindInvalidRequest, nil, "missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// WithDefaults fills empty fields from the deployment defaults.
func (r Request) WithDefaults(d config.RequestDefaults) Request {
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&r.WorkgroupName, d.WorkgroupName)
	fill(&r.DatabaseName, d.DatabaseName)
	fill(&r.AdminSecretARN, d.AdminSecretARN)
	fill(&r.BucketName, d.BucketName)
	fill(&r.KeyPrefix, d.KeyPrefix)
	fill(&r.SQLFileName, d.SQLFileName)
	return r
}

// RequestFromEvent builds a Request from a custom resource lifecycle event.
func RequestFromEvent(event cfn.Event) (Request, error) {
	et, err := ParseEventType(string(event.RequestType))
	if err != nil {
		return Request{}, newError(KindInvalidRequest, nil, "%s", err.Error())
	}

	props := event.ResourceProperties
	return Request{
		Event:              et,
		WorkgroupName:      stringProp(props, PropWorkgroupName),
		DatabaseName:       stringProp(props, PropDatabaseName),
		AdminSecretARN:     stringProp(props, PropAdminSecretARN),
		BucketName:         stringProp(props, PropBucketName),
		KeyPrefix:          stringProp(props, PropKeyPrefix),
		SQLFileName:        stringProp(props, PropSQLFileName),
		SQLHash:            stringProp(props, PropSQLHash),
		RequestID:          event.RequestID,
		PhysicalResourceID: event.PhysicalResourceID,
	}, nil
}

// stringProp reads a resource property. CloudFormation delivers every scalar
// property as a string, but fmt keeps hand-built events working too.
func stringProp(props map[string]interface{}, key string) string {
	v, ok := props[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
