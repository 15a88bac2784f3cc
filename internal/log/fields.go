package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldUserID     = "user_id"
	FieldMutationID = "mutation_id"
	FieldKind       = "kind"
	FieldRetryCount = "retry_count"
	FieldQueueDepth = "queue_depth"
	FieldCategoryID = "category_id"
	FieldAmount     = "amount_pesewas"
)

// Components defines standard component names
const (
	ComponentApp          = "app"
	ComponentHTTP         = "http"
	ComponentBudget       = "budget"
	ComponentQueue        = "queue"
	ComponentSyncer       = "syncer"
	ComponentState        = "state"
	ComponentRemote       = "remote"
	ComponentAMQP         = "amqp"
	ComponentWorker       = "worker"
	ComponentMaterializer = "materializer"
	ComponentTrace        = "trace"
)

// Operations defines standard operation names
const (
	OpEnqueue = "enqueue"
	OpFlush   = "flush"
	OpRetry   = "retry"
	OpClear   = "clear"
	OpRebuild = "rebuild"
	OpProject = "project"

	OpShutdown = "shutdown"
	OpStartup  = "startup"
)
