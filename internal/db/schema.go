package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- INTAKE_JOB TABLE (durable job state)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS intake_job SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS state ON intake_job TYPE string;
    -- Full job document as JSON; queryable columns above stay in sync.
    DEFINE FIELD IF NOT EXISTS doc ON intake_job TYPE string;
    DEFINE FIELD IF NOT EXISTS created ON intake_job TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated ON intake_job TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS intake_job_state ON intake_job FIELDS state;
    DEFINE INDEX IF NOT EXISTS intake_job_created ON intake_job FIELDS created;

    -- ==========================================================================
    -- INTAKE_QUEUE TABLE (pending job FIFO)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS intake_queue SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS job ON intake_queue TYPE string;
    DEFINE FIELD IF NOT EXISTS created ON intake_queue TYPE datetime DEFAULT time::now();

    -- A job may sit in the queue at most once
    DEFINE INDEX IF NOT EXISTS intake_queue_job ON intake_queue FIELDS job UNIQUE;
    DEFINE INDEX IF NOT EXISTS intake_queue_created ON intake_queue FIELDS created;

    -- ==========================================================================
    -- RECORD TABLE (resolved entity records)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS record SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS name ON record TYPE string;
    DEFINE FIELD IF NOT EXISTS class ON record TYPE string;
    DEFINE FIELD IF NOT EXISTS props ON record TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS created ON record TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated ON record TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS record_class ON record FIELDS class;
    DEFINE ANALYZER IF NOT EXISTS record_analyzer TOKENIZERS class FILTERS lowercase, ascii;
    DEFINE INDEX IF NOT EXISTS record_name_ft ON record FIELDS name FULLTEXT ANALYZER record_analyzer BM25;
`
