package sqlinline

const QInsertPrompt = `--sql 98f1fb49-6e2c-4890-baf0-5ccec38028e6
insert into prompts(
  id,
  user_id,
  ordinal,
  prompt,
  status,
  retries,
  retry_requested,
  tier,
  model,
  failure,
  request_json,
  clip_id,
  metrics,
  created_at,
  updated_at
) values (
  $1::uuid,
  $2::text,
  coalesce((select max(ordinal) from prompts where user_id = $2::text), 0) + 1,
  $3::text,
  $4::text,
  $5::int,
  false,
  $6::text,
  nullif($7::text, ''),
  nullif($8::text, ''),
  $9::jsonb,
  nullif($10::text, '')::uuid,
  $11::jsonb,
  now(),
  now()
) returning ordinal;
`

const QUpdatePrompt = `--sql 9e08b0b7-e84c-4292-b36a-60ae4aaab653
update prompts
set
  status = $2::text,
  retries = $3::int,
  model = nullif($4::text, ''),
  failure = nullif($5::text, ''),
  clip_id = nullif($6::text, '')::uuid,
  metrics = $7::jsonb,
  updated_at = now()
where id = $1::uuid;
`

const QSelectPromptByID = `--sql 10fee903-f098-4d0b-a157-35bc0248fae9
select
  id,
  user_id,
  ordinal,
  prompt,
  status,
  retries,
  tier,
  coalesce(model, ''),
  coalesce(failure, ''),
  request_json,
  coalesce(clip_id::text, ''),
  metrics,
  created_at,
  updated_at
from prompts
where id = $1::uuid
limit 1;
`

const QListPromptsByUser = `--sql 63b471d6-c994-483d-9c91-51c9f2f33f84
select
  id,
  user_id,
  ordinal,
  prompt,
  status,
  retries,
  tier,
  coalesce(model, ''),
  coalesce(failure, ''),
  request_json,
  coalesce(clip_id::text, ''),
  metrics,
  created_at,
  updated_at
from prompts
where user_id = $1::text
order by ordinal desc
limit $2::int;
`

const QClaimRunnablePrompt = `--sql 39d7e0af-2d79-41ce-adef-8c9ca6d37a03
with next_prompt as (
    select id
    from prompts
    where (
        status = 'pending'
        or (status = 'failed' and retry_requested)
        or status = 'generating'
      )
      and (claimed_at is null or claimed_at < now() - interval '10 minutes')
    order by created_at asc
    for update skip locked
    limit 1
),
claimed as (
    update prompts
    set claimed_at = now(), retry_requested = false
    where id in (select id from next_prompt)
    returning
      id,
      user_id,
      ordinal,
      prompt,
      status,
      retries,
      tier,
      coalesce(model, '') as model,
      coalesce(failure, '') as failure,
      request_json,
      coalesce(clip_id::text, '') as clip_id,
      metrics,
      created_at,
      updated_at
)
select * from claimed;
`

const QRequestPromptRetry = `--sql b6e0736a-ad04-41cc-9f49-bd7263b750a9
update prompts
set retry_requested = true, claimed_at = null, updated_at = now()
where id = $1::uuid and status = 'failed';
`
