package store

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- DOCUMENT TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS document SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS filename ON document TYPE string;
    DEFINE FIELD IF NOT EXISTS original_name ON document TYPE string;
    DEFINE FIELD IF NOT EXISTS file_type ON document TYPE string;
    DEFINE FIELD IF NOT EXISTS status ON document TYPE string
        ASSERT $value IN ["pending", "processing", "ready", "error"];
    DEFINE FIELD IF NOT EXISTS progress ON document TYPE int DEFAULT 0
        ASSERT $value >= 0 AND $value <= 100;
    DEFINE FIELD IF NOT EXISTS status_detail ON document TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS chunk_count ON document TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS error_message ON document TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS content_hash ON document TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON document TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS document_original_name ON document FIELDS original_name;
    DEFINE INDEX IF NOT EXISTS document_status ON document FIELDS status;

    -- ==========================================================================
    -- CONVERSATION TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS conversation SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS title ON conversation TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON conversation TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON conversation TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS conversation_updated ON conversation FIELDS updated_at;

    -- ==========================================================================
    -- MESSAGE TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS message SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS conversation ON message TYPE record<conversation>;
    DEFINE FIELD IF NOT EXISTS role ON message TYPE string
        ASSERT $value IN ["user", "assistant"];
    DEFINE FIELD IF NOT EXISTS content ON message TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON message TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS message_conversation ON message FIELDS conversation;
`
