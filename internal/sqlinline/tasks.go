package sqlinline

const QTaskEnsureSchema = `--sql 63e57790-7cc5-45e8-9606-b75e3c38b161
create table if not exists image_tasks (
    id            text primary key,
    provider      text not null,
    model         text not null,
    parameters    jsonb not null default '{}'::jsonb,
    status        text not null,
    result_json   jsonb,
    error_code    text not null default '',
    error_message text not null default '',
    created_at    timestamptz not null default now(),
    updated_at    timestamptz not null default now()
);
`

const QTaskInsert = `--sql 8c1ca1eb-5a88-4632-a171-44061b2ad015
insert into image_tasks (id, provider, model, parameters, status, created_at, updated_at)
values ($1, $2, $3, $4, $5, $6, $7);
`

const QTaskClaim = `--sql c71f7f04-f96d-467a-b214-aac9de4ffffe
update image_tasks
set status = 'running', updated_at = now()
where id = $1 and status = 'queued'
returning id;
`

const QTaskExists = `--sql a39747c3-0af1-4cb4-a913-854fefadd38f
select exists (select 1 from image_tasks where id = $1);
`

const QTaskUpdateStatus = `--sql 3628c914-38f0-40de-92c6-c526497ee515
update image_tasks
set status = $2,
    result_json = coalesce($3, result_json),
    error_code = $4,
    error_message = $5,
    updated_at = now()
where id = $1;
`

const QTaskGetByID = `--sql 230d4cea-3de6-40db-b696-a705ac17fe85
select id, provider, model, parameters, status, result_json, error_code, error_message, created_at, updated_at
from image_tasks
where id = $1;
`
